// Package api wraps the reporting service's HTTP endpoints in typed calls.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/schemas"
	"github.com/jonathan/sheetreport/internal/transport"
	"github.com/jonathan/sheetreport/internal/types"
)

// MaxUploadFiles is the most files one primary upload may carry.
const MaxUploadFiles = 5

// Multipart field names expected by the server.
const (
	uploadField  = "files"
	compareField = "file"
)

// Timeouts holds the per-call deadlines.
type Timeouts struct {
	Query    time.Duration
	Compare  time.Duration
	Download time.Duration
}

// DefaultTimeouts returns the standard deadlines: 30s for metadata and
// queries, 60s for file-bearing calls.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Query:    transport.QueryTimeout,
		Compare:  transport.CompareTimeout,
		Download: transport.DownloadTimeout,
	}
}

// Client issues reporting API calls.
type Client struct {
	t        *transport.Client
	timeouts Timeouts
}

var _ pipeline.API = (*Client)(nil)

// New creates a Client on top of a transport.
func New(t *transport.Client) *Client {
	return &Client{t: t, timeouts: DefaultTimeouts()}
}

// WithTimeouts returns a copy of c using tm. Zero fields keep their current value.
func (c *Client) WithTimeouts(tm Timeouts) *Client {
	out := *c
	if tm.Query > 0 {
		out.timeouts.Query = tm.Query
	}
	if tm.Compare > 0 {
		out.timeouts.Compare = tm.Compare
	}
	if tm.Download > 0 {
		out.timeouts.Download = tm.Download
	}
	return &out
}

// Upload sends 1 to MaxUploadFiles spreadsheets and returns the new dataset id.
func (c *Client) Upload(ctx context.Context, paths []string) (*types.UploadResult, error) {
	if len(paths) == 0 {
		return nil, &pipeline.ValidationError{Stage: pipeline.StageUpload, Message: "Pick a file first."}
	}
	if len(paths) > MaxUploadFiles {
		return nil, &pipeline.ValidationError{Stage: pipeline.StageUpload, Message: fmt.Sprintf("Upload up to %d files at once.", MaxUploadFiles)}
	}

	parts := make([]transport.FilePart, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
		defer func() { _ = f.Close() }()
		parts = append(parts, transport.FilePart{Filename: filepath.Base(p), Content: f})
	}

	resp, err := c.t.Send(ctx, &transport.Request{
		Method:    http.MethodPost,
		Path:      "/api/upload",
		Files:     parts,
		FieldName: uploadField,
		Timeout:   c.timeouts.Query,
	})
	if err != nil {
		return nil, err
	}

	var out types.UploadResult
	if err := decode(resp, schemas.Upload, &out); err != nil {
		return nil, err
	}
	if out.UploadedFiles == 0 {
		out.UploadedFiles = len(paths)
	}
	return &out, nil
}

// Meta returns the dataset's columns and designated agent/date columns.
func (c *Client) Meta(ctx context.Context, fileID string) (*types.Meta, error) {
	resp, err := c.t.Send(ctx, &transport.Request{
		Path:    "/api/meta/" + url.PathEscape(fileID),
		Timeout: c.timeouts.Query,
	})
	if err != nil {
		return nil, err
	}

	var out types.Meta
	if err := decode(resp, schemas.Meta, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DateBounds returns the earliest and latest dates in the dataset.
func (c *Client) DateBounds(ctx context.Context, fileID string) (*types.DateBounds, error) {
	resp, err := c.t.Send(ctx, &transport.Request{
		Path:    "/api/date-range/" + url.PathEscape(fileID),
		Timeout: c.timeouts.Query,
	})
	if err != nil {
		return nil, err
	}

	var out types.DateBounds
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadDataset fetches meta and date bounds concurrently. Missing date bounds
// are not fatal; the dataset simply has no range hints.
func (c *Client) LoadDataset(ctx context.Context, fileID string) (*types.Dataset, error) {
	var (
		meta   *types.Meta
		bounds *types.DateBounds
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := c.Meta(gctx, fileID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	g.Go(func() error {
		b, err := c.DateBounds(gctx, fileID)
		if err != nil {
			bounds = &types.DateBounds{}
			return nil
		}
		bounds = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &types.Dataset{
		FileID:      fileID,
		Columns:     meta.Columns,
		AgentColumn: meta.AgentColumn,
		DateColumn:  meta.DateColumn,
		MinDate:     bounds.Min,
		MaxDate:     bounds.Max,
	}, nil
}

// Query returns one page of filtered rows.
func (c *Client) Query(ctx context.Context, fileID string, payload types.QueryPayload) (*types.QueryResult, error) {
	resp, err := c.t.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    "/api/query/" + url.PathEscape(fileID),
		JSON:    payload,
		Timeout: c.timeouts.Query,
	})
	if err != nil {
		return nil, err
	}

	var out types.QueryResult
	if err := decode(resp, schemas.Query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agents lists the distinct agents in the dataset's agent column.
func (c *Client) Agents(ctx context.Context, fileID string, req types.AgentsRequest) (*types.AgentsResult, error) {
	resp, err := c.t.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    "/api/agents/" + url.PathEscape(fileID),
		JSON:    req,
		Timeout: c.timeouts.Query,
	})
	if err != nil {
		return nil, err
	}

	var out types.AgentsResult
	if err := decode(resp, schemas.Agents, &out); err != nil {
		return nil, err
	}
	if out.Count == 0 {
		out.Count = len(out.Agents)
	}
	return &out, nil
}

// ExportURL returns the absolute export link for the given query parameters.
func (c *Client) ExportURL(fileID string, params url.Values) string {
	return c.t.URL("/api/export/"+url.PathEscape(fileID), params)
}

// Export downloads the filtered dataset as csv or xlsx.
func (c *Client) Export(ctx context.Context, fileID string, params url.Values) (*types.Download, error) {
	fallback := "export." + params.Get("format")
	return c.download(ctx, "/api/export/"+url.PathEscape(fileID), params, fallback)
}

// Compare uploads a second spreadsheet and compares it with the dataset.
// The server normally answers with a JSON preview; a spreadsheet answer is
// returned in Direct instead.
func (c *Client) Compare(ctx context.Context, fileID, path string) (*types.CompareResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	resp, err := c.t.Send(ctx, &transport.Request{
		Method:    http.MethodPost,
		Path:      "/api/agent-compare/" + url.PathEscape(fileID),
		Files:     []transport.FilePart{{Filename: filepath.Base(path), Content: f}},
		FieldName: compareField,
		Timeout:   c.timeouts.Compare,
	})
	if err != nil {
		return nil, err
	}

	if !resp.IsJSON() {
		return &types.CompareResult{
			Direct: &types.Download{
				Filename:    resp.Filename(pipeline.DefaultCompareFilename),
				ContentType: resp.Header.Get("Content-Type"),
				Body:        resp.Body,
			},
		}, nil
	}

	var out types.CompareResult
	if err := decode(resp, schemas.Compare, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateActivity builds a monthly activity report from a compare report.
func (c *Client) GenerateActivity(ctx context.Context, fileID, reportID string, req types.ActivityRequest) (*types.ActivityResult, error) {
	resp, err := c.t.Send(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    "/api/agent-monthly/" + url.PathEscape(fileID) + "/" + url.PathEscape(reportID),
		JSON:    req,
		Timeout: c.timeouts.Query,
	})
	if err != nil {
		return nil, err
	}

	var out types.ActivityResult
	if err := decode(resp, schemas.Activity, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadCompare fetches the inactive-business spreadsheet of a compare report.
func (c *Client) DownloadCompare(ctx context.Context, fileID, reportID string) (*types.Download, error) {
	path := "/api/agent-compare-download/" + url.PathEscape(fileID) + "/" + url.PathEscape(reportID)
	return c.download(ctx, path, nil, pipeline.DefaultCompareFilename)
}

// DownloadActivity fetches the spreadsheet of a monthly activity report.
func (c *Client) DownloadActivity(ctx context.Context, fileID, reportID, activityReportID string) (*types.Download, error) {
	path := "/api/agent-monthly-download/" + url.PathEscape(fileID) + "/" + url.PathEscape(reportID) + "/" + url.PathEscape(activityReportID)
	return c.download(ctx, path, nil, pipeline.DefaultActivityFilename)
}

func (c *Client) download(ctx context.Context, path string, query url.Values, fallback string) (*types.Download, error) {
	resp, err := c.t.Send(ctx, &transport.Request{
		Path:    path,
		Query:   query,
		Timeout: c.timeouts.Download,
	})
	if err != nil {
		return nil, err
	}
	return &types.Download{
		Filename:    resp.Filename(fallback),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

// decode checks a JSON body against its schema, then unmarshals it.
func decode(resp *transport.Response, schema string, v any) error {
	if err := schemas.Validate(schema, resp.Body); err != nil {
		return fmt.Errorf("unexpected %s response: %w", schema, err)
	}
	return resp.Decode(v)
}

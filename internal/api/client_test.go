package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/sheetreport/internal/pipeline"
	"github.com/jonathan/sheetreport/internal/transport"
	"github.com/jonathan/sheetreport/internal/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tc, err := transport.New(&transport.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return New(tc)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestUpload(t *testing.T) {
	a := writeFile(t, "jan.xlsx", "a")
	b := writeFile(t, "feb.csv", "b")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "jan.xlsx", files[0].Filename)
		assert.Equal(t, "feb.csv", files[1].Filename)
		writeJSON(w, http.StatusOK, map[string]any{"file_id": "abc", "uploaded_files": 2})
	})

	res, err := c.Upload(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.FileID)
	assert.Equal(t, 2, res.UploadedFiles)
}

func TestUpload_FileCountChecked(t *testing.T) {
	called := false
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

	_, err := c.Upload(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, pipeline.IsValidation(err))
	assert.Equal(t, "Pick a file first.", err.Error())

	paths := make([]string, 6)
	for i := range paths {
		paths[i] = writeFile(t, "f"+string(rune('a'+i))+".csv", "x")
	}
	_, err = c.Upload(context.Background(), paths)
	require.Error(t, err)
	assert.Equal(t, "Upload up to 5 files at once.", err.Error())
	assert.False(t, called)
}

func TestUpload_MissingFileIDRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"uploaded_files": 1})
	})

	_, err := c.Upload(context.Background(), []string{writeFile(t, "a.csv", "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected upload response")
}

func TestLoadDataset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/meta/abc":
			writeJSON(w, http.StatusOK, map[string]any{
				"columns":   []string{"S/N", "Agent", "Date", "Business"},
				"agent_col": "Agent",
				"date_col":  "Date",
			})
		case "/api/date-range/abc":
			writeJSON(w, http.StatusOK, map[string]any{"min": "2025-01-01", "max": "2025-03-31"})
		default:
			http.NotFound(w, r)
		}
	})

	ds, err := c.LoadDataset(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, &types.Dataset{
		FileID:      "abc",
		Columns:     []string{"S/N", "Agent", "Date", "Business"},
		AgentColumn: "Agent",
		DateColumn:  "Date",
		MinDate:     "2025-01-01",
		MaxDate:     "2025-03-31",
	}, ds)
}

func TestLoadDataset_DateRangeOptional(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/meta/abc" {
			writeJSON(w, http.StatusOK, map[string]any{"columns": []string{"Name"}})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No date column"})
	})

	ds, err := c.LoadDataset(context.Background(), "abc")
	require.NoError(t, err)
	assert.Empty(t, ds.MinDate)
	assert.Equal(t, []string{"Name"}, ds.Columns)
}

func TestLoadDataset_MetaFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Unknown file id"})
	})

	_, err := c.LoadDataset(context.Background(), "nope")
	var httpErr *transport.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Unknown file id", httpErr.Message)
}

func TestQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/query/abc", r.URL.Path)

		var got types.QueryPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, types.QueryPayload{Column: "Agent", Value: "ann", Mode: "contains", Page: 2, PageSize: 25}, got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"rows":[{"Name":"Acme","S/N":1}],"count":26,"page":2,"total_pages":2}`)
	})

	res, err := c.Query(context.Background(), "abc", types.QueryPayload{Column: "Agent", Value: "ann", Mode: "contains", Page: 2, PageSize: 25})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"Name", "S/N"}, res.Rows[0].Keys())
	assert.Equal(t, 2, res.TotalPages)
}

func TestQuery_SchemaMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"rows": "nope"})
	})

	_, err := c.Query(context.Background(), "abc", types.QueryPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected query response")
}

func TestAgents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got types.AgentsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "an", got.Search)
		writeJSON(w, http.StatusOK, map[string]any{"agents": []string{"Ann", "Dan"}})
	})

	res, err := c.Agents(context.Background(), "abc", types.AgentsRequest{Search: "an"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

func TestExport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/export/abc", r.URL.Path)
		assert.Equal(t, "xlsx", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="filtered.xlsx"`)
		_, _ = w.Write([]byte("PK"))
	})

	params := url.Values{"format": {"xlsx"}, "column": {"Agent"}}
	assert.Contains(t, c.ExportURL("abc", params), "/api/export/abc?column=Agent&format=xlsx")

	dl, err := c.Export(context.Background(), "abc", params)
	require.NoError(t, err)
	assert.Equal(t, "filtered.xlsx", dl.Filename)
	assert.Equal(t, []byte("PK"), dl.Body)
}

func TestCompare_JSONPreview(t *testing.T) {
	path := writeFile(t, "march.xlsx", "compare")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agent-compare/abc", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "march.xlsx", hdr.Filename)

		writeJSON(w, http.StatusOK, map[string]any{
			"report_id":      "r1",
			"preview_rows":   []map[string]any{{"Business": "Acme"}},
			"compared_count": 10,
			"inactive_count": 2,
			"preview_total":  2,
			"preview_limit":  50,
		})
	})

	res, err := c.Compare(context.Background(), "abc", path)
	require.NoError(t, err)
	assert.Equal(t, "r1", res.ReportID)
	assert.Equal(t, 10, res.ComparedCount)
	assert.Nil(t, res.Direct)
}

func TestCompare_DirectSpreadsheet(t *testing.T) {
	path := writeFile(t, "march.csv", "compare")
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("binary"))
	})

	res, err := c.Compare(context.Background(), "abc", path)
	require.NoError(t, err)
	require.NotNil(t, res.Direct)
	assert.Empty(t, res.ReportID)
	assert.Equal(t, pipeline.DefaultCompareFilename, res.Direct.Filename)
	assert.Equal(t, []byte("binary"), res.Direct.Body)
}

func TestGenerateActivity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agent-monthly/abc/r1", r.URL.Path)
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, map[string]string{
			"timeframe_mode": "custom",
			"month":          "",
			"start_date":     "2025-03-01",
			"end_date":       "2025-03-31",
			"activity_type":  "all",
		}, got)
		writeJSON(w, http.StatusOK, map[string]any{"activity_report_id": "a1", "total_rows": 3})
	})

	res, err := c.GenerateActivity(context.Background(), "abc", "r1", types.ActivityRequest{
		TimeframeMode: "custom",
		StartDate:     "2025-03-01",
		EndDate:       "2025-03-31",
		ActivityType:  "all",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", res.ActivityReportID)
	assert.Equal(t, 3, res.TotalRows)
}

func TestDownloads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/agent-compare-download/abc/r1":
			w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''inactive%20march.xlsx`)
			_, _ = w.Write([]byte("cmp"))
		case "/api/agent-monthly-download/abc/r1/a1":
			_, _ = w.Write([]byte("act"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Report expired"})
		}
	})

	dl, err := c.DownloadCompare(context.Background(), "abc", "r1")
	require.NoError(t, err)
	assert.Equal(t, "inactive march.xlsx", dl.Filename)

	dl, err = c.DownloadActivity(context.Background(), "abc", "r1", "a1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultActivityFilename, dl.Filename)
	assert.Equal(t, []byte("act"), dl.Body)

	_, err = c.DownloadCompare(context.Background(), "abc", "gone")
	var httpErr *transport.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestQuery_TimesOut(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })

	c = c.WithTimeouts(Timeouts{Query: 50 * time.Millisecond})
	_, err := c.Query(context.Background(), "abc", types.QueryPayload{})

	var timeoutErr *transport.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
}

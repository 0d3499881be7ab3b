// Package transport sends requests to the reporting API with a per-call
// deadline and decodes failures into a small error taxonomy.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Per-call deadlines.
const (
	QueryTimeout    = 30 * time.Second
	CompareTimeout  = 60 * time.Second
	DownloadTimeout = 60 * time.Second
)

// DefaultUserAgent is the user agent string for API requests.
const DefaultUserAgent = "sheetreport/1.0"

// RequestIDHeader carries a per-request UUID for server-side correlation.
const RequestIDHeader = "X-Request-ID"

// FilePart is one file in a multipart body.
type FilePart struct {
	Filename string
	Content  io.Reader
}

// Request describes one API call. At most one of JSON and Files is set.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	JSON      any
	Files     []FilePart
	FieldName string
	Timeout   time.Duration
}

// Response is a fully read 2xx response.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// IsJSON reports whether the response declares a JSON body.
func (r *Response) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "json")
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Options configures the client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// DefaultOptions returns sensible defaults for talking to the API.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   QueryTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client sends requests relative to a base URL.
type Client struct {
	base *url.URL
	opts Options
	http *http.Client
	log  logrus.FieldLogger
}

// New creates a client for the given options.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &NetworkError{
			URL:     opts.BaseURL,
			Message: "invalid API base URL",
			Cause:   err,
		}
	}

	c := &Client{base: base, opts: *opts}
	if c.opts.Timeout <= 0 {
		c.opts.Timeout = QueryTimeout
	}
	if c.opts.UserAgent == "" {
		c.opts.UserAgent = DefaultUserAgent
	}

	// Deadlines come from the per-request context, not http.Client.Timeout.
	c.http = opts.HTTPClient
	if c.http == nil {
		c.http = &http.Client{}
	}

	c.log = opts.Logger
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}

	return c, nil
}

// URL returns the absolute URL for an API path.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Send performs the request. The deadline timer is released on every return
// path. Failures are *TimeoutError, *HTTPError or *NetworkError.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.URL(req.Path, req.Query)
	body, contentType, err := req.encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, &NetworkError{URL: target, Message: "failed to create request", Cause: err}
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("User-Agent", c.opts.UserAgent)
	httpReq.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range c.opts.Headers {
		httpReq.Header.Set(key, value)
	}

	log := c.log.WithFields(logrus.Fields{
		"method":     httpReq.Method,
		"path":       httpReq.URL.Path,
		"request_id": requestID,
	})
	started := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return nil, classify(ctx, httpReq.Method, target, timeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Debug("failed to read response body")
		return nil, classify(ctx, httpReq.Method, target, timeout, err)
	}

	log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"bytes":       len(payload),
		"duration_ms": time.Since(started).Milliseconds(),
	}).Debug("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, payload)
	}

	return &Response{
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      payload,
		RequestID: requestID,
	}, nil
}

// classify maps a transport failure to TimeoutError when our own deadline
// fired, and to NetworkError otherwise.
func classify(ctx context.Context, method, target string, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Method: method, URL: target, Timeout: timeout}
	}
	if errors.Is(err, context.Canceled) {
		return &NetworkError{URL: target, Message: "request canceled", Cause: err}
	}
	return &NetworkError{URL: target, Message: "request failed", Cause: err}
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r *Request) encode() (io.Reader, string, error) {
	if r.JSON != nil && len(r.Files) > 0 {
		return nil, "", errors.New("request cannot carry both JSON and files")
	}

	if r.JSON != nil {
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}

	if len(r.Files) > 0 {
		field := r.FieldName
		if field == "" {
			field = "file"
		}

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for _, f := range r.Files {
			part, err := mw.CreateFormFile(field, f.Filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", fmt.Errorf("failed to read %s: %w", f.Filename, err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}

	return nil, "", nil
}

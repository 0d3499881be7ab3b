package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	opts := DefaultOptions()
	opts.BaseURL = server.URL
	client, err := New(opts)
	require.NoError(t, err)
	return client
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(&Options{BaseURL: "not-a-url"})
	require.Error(t, err)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.Contains(t, err.Error(), "invalid API base URL")
}

func TestSend_JSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/query/abc", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		assert.NoError(t, err, "request id should be a uuid")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Region", body["column"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	resp, err := client.Send(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/api/query/abc",
		JSON:   map[string]string{"column": "Region"},
	})
	require.NoError(t, err)
	assert.True(t, resp.IsJSON())

	var out struct{ Count int }
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, 3, out.Count)
}

func TestSend_HTTPErrorUsesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Unknown column"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Send(context.Background(), &Request{Path: "/api/meta/x"})
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "Unknown column", httpErr.Message)
}

func TestSend_HTTPErrorRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Send(context.Background(), &Request{Path: "/api/meta/x"})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "request failed (502)", httpErr.Message)
	assert.Equal(t, "<html>bad gateway</html>", httpErr.Payload["raw"])
}

func TestSend_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	start := time.Now()
	_, err := newTestClient(t, server).Send(context.Background(), &Request{
		Path:    "/api/agent-compare/x",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, IsTimeout(err))
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)
}

func TestSend_CallerCancelIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(t, server).Send(ctx, &Request{Path: "/slow"})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "request canceled", netErr.Message)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSend_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := newTestClient(t, server)
	server.Close()

	_, err := client.Send(context.Background(), &Request{Path: "/api/meta/x"})
	require.Error(t, err)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.False(t, IsTimeout(err))
}

func TestSend_Multipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.csv", files[0].Filename)
		assert.Equal(t, "b.xlsx", files[1].Filename)

		f, err := files[0].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "x,y\n1,2\n", string(data))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"file_id":"abc","uploaded_files":2}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server).Send(context.Background(), &Request{
		Method:    http.MethodPost,
		Path:      "/api/upload",
		FieldName: "files",
		Files: []FilePart{
			{Filename: "a.csv", Content: strings.NewReader("x,y\n1,2\n")},
			{Filename: "b.xlsx", Content: strings.NewReader("PK")},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "abc")
}

func TestSend_RejectsJSONAndFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("request should not be sent")
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Send(context.Background(), &Request{
		JSON:  map[string]string{},
		Files: []FilePart{{Filename: "a.csv", Content: strings.NewReader("")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both JSON and files")
}

func TestURL(t *testing.T) {
	client, err := New(&Options{BaseURL: "https://reports.example.com/base/"})
	require.NoError(t, err)

	q := url.Values{}
	q.Set("format", "csv")
	q.Set("column", "Agent Name")
	assert.Equal(t,
		"https://reports.example.com/base/api/export/abc?column=Agent+Name&format=csv",
		client.URL("/api/export/abc", q))
}

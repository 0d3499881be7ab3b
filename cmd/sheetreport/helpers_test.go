package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory reporting server with one uploaded dataset.
type fakeAPI struct {
	mu       sync.Mutex
	compares int
	requests []string
	bodies   map[string][]byte
	// onQuery runs inside the query handler before it answers.
	onQuery func()
	// emptyQuery makes the query endpoint return no rows.
	emptyQuery bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{bodies: map[string][]byte{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		writeJSON(w, http.StatusOK, map[string]any{
			"file_id":        "ds1",
			"uploaded_files": len(r.MultipartForm.File["files"]),
		})
	})
	mux.HandleFunc("/api/meta/ds1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"columns":   []string{"Business", "Agent", "Date", "S/N"},
			"agent_col": "Agent",
			"date_col":  "Date",
		})
	})
	mux.HandleFunc("/api/date-range/ds1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{"min": "2024-01-01", "max": "2024-06-30"})
	})
	mux.HandleFunc("/api/query/ds1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		page := int(body["page"].(float64))
		if f.onQuery != nil {
			f.onQuery()
		}
		w.Header().Set("Content-Type", "application/json")
		if f.emptyQuery {
			_, _ = w.Write([]byte(`{"rows":[],"count":0,"page":1,"total_pages":1}`))
			return
		}
		_, _ = w.Write([]byte(`{"rows":[{"Business":"Acme","Agent":"` + body["value"].(string) +
			`","S/N":1}],"count":3,"page":` + strconv.Itoa(page) + `,"total_pages":3}`))
	})
	mux.HandleFunc("/api/agents/ds1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"agents":   []string{"Alice", "Bob"},
			"date_col": "Date",
		})
	})
	mux.HandleFunc("/api/export/ds1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="filtered.csv"`)
		_, _ = w.Write([]byte("Business\nAcme\n"))
	})
	mux.HandleFunc("/api/agent-compare/ds1", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.compares++
		id := "rep" + strconv.Itoa(f.compares)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"report_id":"` + id + `","preview_rows":[{"Business":"Acme","S/N":7}],` +
			`"compared_count":10,"inactive_count":1,"preview_total":1,"preview_limit":50}`))
	})
	mux.HandleFunc("/api/agent-monthly/ds1/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"activity_report_id": "act1",
			"preview_rows":       []map[string]any{{"Agent": "Alice", "Visits": 4}},
			"total_rows":         1,
			"timeframe_label":    "June 2024",
			"activity_type":      "all",
		})
	})
	mux.HandleFunc("/api/agent-compare-download/ds1/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write([]byte("xlsx-compare"))
	})
	mux.HandleFunc("/api/agent-monthly-download/ds1/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="monthly.xlsx"`)
		_, _ = w.Write([]byte("xlsx-activity"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		f.bodies[r.URL.Path] = buf.Bytes()
		r.Body = readCloser{bytes.NewReader(buf.Bytes())}
	}
}

func (f *fakeAPI) body(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out map[string]any
	_ = json.Unmarshal(f.bodies[path], &out)
	return out
}

func (f *fakeAPI) sawRequest(req string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == req {
			return true
		}
	}
	return false
}

func (f *fakeAPI) sawPrefix(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			return true
		}
	}
	return false
}

type readCloser struct{ *bytes.Reader }

func (readCloser) Close() error { return nil }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// env holds the directories one test's commands share.
type env struct {
	apiBase    string
	sessionDir string
	outputDir  string
}

func newEnv(t *testing.T, apiBase string) env {
	t.Helper()
	root := t.TempDir()
	return env{
		apiBase:    apiBase,
		sessionDir: filepath.Join(root, "session"),
		outputDir:  filepath.Join(root, "out"),
	}
}

// run executes the CLI in-process and returns stdout and the error.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{
		"--api-base", e.apiBase,
		"--session-dir", e.sessionDir,
		"--output-dir", e.outputDir,
	}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so runs don't leak into
// each other through the package-level flag variables.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeSheet(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("sheet"), 0o644))
	return path
}

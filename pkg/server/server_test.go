package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/boxrender/pkg/cache"
	"github.com/matzehuels/boxrender/pkg/history"
	"github.com/matzehuels/boxrender/pkg/httputil"
	"github.com/matzehuels/boxrender/pkg/observability"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

const testScene = `
[scene]
width = 40
height = 20
end = 3

[[box]]
name = "red"
kind = "rect"
width = 10
height = 10
fill = "#ff0000"
`

func newTestServer(t *testing.T) (*httptest.Server, *history.MemoryStore) {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	store := history.NewMemoryStore()
	srv := New(Config{
		Runner:  pipeline.NewRunner(c, nil, logger),
		History: store,
		Logger:  logger,
		Workers: 2,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var env httputil.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return env.Error.Code
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
		Build  struct {
			Version string `json:"version"`
		} `json:"build"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Build.Version == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestRender(t *testing.T) {
	ts, store := newTestServer(t)

	resp := post(t, ts.URL+"/render?frame=1", "application/toml", testScene)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := resp.Header.Get(HeaderCache); got != "MISS" {
		t.Errorf("%s = %q, want MISS", HeaderCache, got)
	}
	if resp.Header.Get(HeaderSceneHash) == "" {
		t.Errorf("missing %s", HeaderSceneHash)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("bounds = %v", b)
	}

	again := post(t, ts.URL+"/render?frame=1", "application/toml", testScene)
	if got := again.Header.Get(HeaderCache); got != "HIT" {
		t.Errorf("second %s = %q, want HIT", HeaderCache, got)
	}

	records, _ := store.List(context.Background(), 10)
	if len(records) != 2 {
		t.Fatalf("history has %d records, want 2", len(records))
	}
	if records[0].ID != again.Header.Get(HeaderRecord) {
		t.Error("record header should name the newest record")
	}
}

func TestRenderJSON(t *testing.T) {
	ts, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"scene": testScene, "resolution": 2})

	resp := post(t, ts.URL+"/render?frame=0", "application/json", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 40 {
		t.Errorf("bounds = %v, want 80x40", b)
	}
}

func TestRenderErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name        string
		query       string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{"missing frame", "", "application/toml", testScene, 400, "INVALID_FRAME"},
		{"frame out of range", "?frame=9", "application/toml", testScene, 400, "INVALID_FRAME"},
		{"empty body", "?frame=0", "application/toml", "", 400, "INVALID_INPUT"},
		{"bad toml", "?frame=0", "application/toml", "[[box]\n", 400, "INVALID_FORMAT"},
		{"unknown json field", "?frame=0", "application/json", `{"scene": "x", "nope": 1}`, 400, "INVALID_INPUT"},
		{"bad resolution", "?frame=0&resolution=abc", "application/toml", testScene, 400, "INVALID_INPUT"},
		{"duplicate box", "?frame=0", "application/toml", testScene + "\n[[box]]\nname = \"red\"\nkind = \"rect\"\n", 400, "INVALID_BOX"},
		{"huge canvas", "?frame=0", "application/toml", "[scene]\nwidth = 4294967296\nheight = 4294967296\n", 400, "INVALID_SCENE"},
		{"huge canvas json", "?frame=0", "application/json", `{"scene": "[scene]\nwidth = 4294967296\nheight = 4294967296\n"}`, 400, "INVALID_SCENE"},
		{"canvas too large at resolution", "?frame=0&resolution=16", "application/toml", "[scene]\nwidth = 2000\nheight = 20\n", 400, "INVALID_SCENE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/render"+tt.query, tt.contentType, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := errorCode(t, resp); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestRenderBodyLimit(t *testing.T) {
	srv := New(Config{MaxBody: 16})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := post(t, ts.URL+"/render?frame=0", "application/toml", testScene)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGraph(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := post(t, ts.URL+"/graph?frame=2", "application/toml", testScene)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("Content-Type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(data, []byte("digraph")) || !bytes.Contains(data, []byte("red @2")) {
		t.Errorf("unexpected graph:\n%s", data)
	}

	bad := post(t, ts.URL+"/graph?frame=2&format=gif", "application/toml", testScene)
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d", bad.StatusCode)
	}
}

func TestHistory(t *testing.T) {
	ts, _ := newTestServer(t)
	render := post(t, ts.URL+"/render?frame=0", "application/toml", testScene)
	id := render.Header.Get(HeaderRecord)

	resp, err := http.Get(ts.URL + "/history?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var list struct {
		Records []history.Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Records) != 1 || list.Records[0].ID != id {
		t.Errorf("records = %+v", list.Records)
	}

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/history/" + id, http.StatusOK},
		{"/history/missing", http.StatusNotFound},
		{"/history?limit=0", http.StatusBadRequest},
		{"/history?limit=x", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.wantStatus {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
		}
	}
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu       sync.Mutex
	statuses []int
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

func TestObserveHooks(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	h := New(Config{}).Handler()
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
		httptest.NewRequest(http.MethodPost, "/render", strings.NewReader(testScene)),
		httptest.NewRequest(http.MethodGet, "/nope", nil),
	} {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	want := []int{200, 400, 404}
	if len(hooks.statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", hooks.statuses, want)
	}
	for i := range want {
		if hooks.statuses[i] != want[i] {
			t.Errorf("statuses = %v, want %v", hooks.statuses, want)
		}
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	srv := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

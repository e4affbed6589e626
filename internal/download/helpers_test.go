package download

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shardd/pkg/types"
)

// fakeHub serves a single repository the way the model hub does.
type fakeHub struct {
	repo  string
	files map[string][]byte

	listCalls  atomic.Int64
	fetchCalls atomic.Int64

	mu     sync.Mutex
	ranges []string

	// block makes every request wait for the client to go away.
	block bool
}

func newFakeHub(t *testing.T, repo string, files map[string][]byte) (*fakeHub, *httptest.Server) {
	t.Helper()
	h := &fakeHub{repo: repo, files: files}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *fakeHub) requests() int64 { return h.listCalls.Load() + h.fetchCalls.Load() }

func (h *fakeHub) seenRanges() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ranges...)
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.block {
		<-r.Context().Done()
		return
	}
	treePrefix := "/api/models/" + h.repo + "/tree/"
	filePrefix := "/" + h.repo + "/resolve/main/"
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/models/"):
		h.listCalls.Add(1)
		if !strings.HasPrefix(r.URL.Path, treePrefix) {
			http.Error(w, "Repository not found", http.StatusNotFound)
			return
		}
		tree := []RemoteFile{{Type: "directory", Path: "docs"}}
		for p, b := range h.files {
			tree = append(tree, RemoteFile{Type: "file", Path: p, Size: int64(len(b))})
		}
		_ = json.NewEncoder(w).Encode(tree)
	case strings.HasPrefix(r.URL.Path, filePrefix):
		h.fetchCalls.Add(1)
		name := strings.TrimPrefix(r.URL.Path, filePrefix)
		b, ok := h.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if rg := r.Header.Get("Range"); rg != "" {
			h.mu.Lock()
			h.ranges = append(h.ranges, name+" "+rg)
			h.mu.Unlock()
		}
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(b))
	default:
		http.NotFound(w, r)
	}
}

// slowSource streams files in small chunks so the monitor observes the
// transfer in flight.
type slowSource struct {
	files map[string][]byte
	chunk int
	delay time.Duration
}

func (s *slowSource) ListFiles(ctx context.Context, repoID, revision string) ([]RemoteFile, error) {
	var out []RemoteFile
	for p, b := range s.files {
		out = append(out, RemoteFile{Type: "file", Path: p, Size: int64(len(b))})
	}
	return out, nil
}

func (s *slowSource) Open(ctx context.Context, repoID, revision, path string, offset int64) (io.ReadCloser, bool, error) {
	b, ok := s.files[path]
	if !ok {
		return nil, false, &NotFoundError{ModelID: repoID}
	}
	return io.NopCloser(&slowReader{data: b[offset:], chunk: s.chunk, delay: s.delay}), offset > 0, nil
}

type slowReader struct {
	data  []byte
	chunk int
	delay time.Duration
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	time.Sleep(r.delay)
	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

// failingSource fails the test when touched.
type failingSource struct{ t *testing.T }

func (f failingSource) ListFiles(context.Context, string, string) ([]RemoteFile, error) {
	f.t.Errorf("unexpected remote listing")
	return nil, errors.New("unexpected")
}

func (f failingSource) Open(context.Context, string, string, string, int64) (io.ReadCloser, bool, error) {
	f.t.Errorf("unexpected remote fetch")
	return nil, false, errors.New("unexpected")
}

// recorder is a bus subscriber that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (r *recorder) fn(_ types.Shard, ev types.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []types.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProgressEvent(nil), r.events...)
}

func (r *recorder) count(st types.DownloadState) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Status == st {
			n++
		}
	}
	return n
}

func fill(n int, c byte) []byte { return bytes.Repeat([]byte{c}, n) }

func testShard(model string) types.Shard {
	return types.Shard{ModelID: model, StartLayer: 0, EndLayer: 3, NLayers: 8}
}

func fastConfig(cacheDir string) Config {
	return Config{CacheDir: cacheDir, MonitorInterval: 5 * time.Millisecond}
}

type countingSource struct {
	Source
	lists atomic.Int64
}

func (c *countingSource) ListFiles(ctx context.Context, repoID, revision string) ([]RemoteFile, error) {
	c.lists.Add(1)
	return c.Source.ListFiles(ctx, repoID, revision)
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"shardd/internal/download"
	"shardd/internal/engine"
	"shardd/internal/httpapi"
	"shardd/internal/node"
	"shardd/pkg/types"
)

// hub serves a single repository in the hub's tree and resolve layout.
type hub struct {
	repo  string
	files map[string][]byte
}

func newHub(t *testing.T, repo string, files map[string][]byte) *httptest.Server {
	t.Helper()
	h := &hub{repo: repo, files: files}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	treePrefix := "/api/models/" + h.repo + "/tree/"
	resolvePrefix := "/" + h.repo + "/resolve/main/"
	switch {
	case strings.HasPrefix(r.URL.Path, treePrefix):
		var out []download.RemoteFile
		for p, b := range h.files {
			out = append(out, download.RemoteFile{Type: "file", Path: p, Size: int64(len(b))})
		}
		_ = json.NewEncoder(w).Encode(out)
	case strings.HasPrefix(r.URL.Path, resolvePrefix):
		b, ok := h.files[strings.TrimPrefix(r.URL.Path, resolvePrefix)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(b))
	default:
		http.NotFound(w, r)
	}
}

// splitModel maps prompts to token ids by word and emits a hidden tensor on
// intermediate stages and the token id 9 on the final stage.
type splitModel struct {
	shard types.Shard
	gate  chan struct{}
}

func (m splitModel) Forward(ctx context.Context, in types.Tensor, _ int) (types.Tensor, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return types.Tensor{}, ctx.Err()
		}
	}
	if m.shard.IsLastLayer() {
		return types.Tensor{Shape: []int{1}, Data: []float32{9}}, nil
	}
	return types.Tensor{Shape: []int{1, len(in.Data), 2}, Data: make([]float32, 2*len(in.Data))}, nil
}

type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) ([]int, error) {
	f := strings.Fields(text)
	out := make([]int, len(f))
	for i := range f {
		out[i] = 10 + i
	}
	return out, nil
}

func (wordTokenizer) EOSTokenID() int { return 2 }

type backend struct {
	gate chan struct{}
	mu   sync.Mutex
	dirs []string
}

func (b *backend) Load(_ context.Context, dir string, shard types.Shard) (engine.Model, engine.Tokenizer, error) {
	b.mu.Lock()
	b.dirs = append(b.dirs, dir)
	b.mu.Unlock()
	return splitModel{shard: shard, gate: b.gate}, wordTokenizer{}, nil
}

type stack struct {
	srv  *httptest.Server
	node *node.Node
	dl   *download.Downloader
}

func newStack(t *testing.T, hubURL string, be engine.Backend, queueDepth int, maxWait time.Duration) *stack {
	t.Helper()
	dl := download.New(download.NewHubSource(hubURL, "", nil), download.Config{
		CacheDir:        t.TempDir(),
		MonitorInterval: 2 * time.Millisecond,
	})
	eng := engine.New(engine.Config{
		Name:          "e2e",
		Acquirer:      dl,
		Backend:       be,
		MaxQueueDepth: queueDepth,
		MaxWait:       maxWait,
	})
	n := node.New(node.Config{Engine: eng, Downloader: dl, BroadcastInterval: time.Millisecond, Logger: zerolog.Nop()})
	srv := httptest.NewServer(httpapi.NewMux(n))
	t.Cleanup(func() {
		srv.Close()
		n.Wait()
	})
	return &stack{srv: srv, node: n, dl: dl}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

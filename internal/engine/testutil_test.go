package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"shardd/pkg/types"
)

const testEOS = 2

// fakeAcquirer returns a fixed directory, counting calls.
type fakeAcquirer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *fakeAcquirer) EnsureShard(_ context.Context, shard types.Shard, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	return "/cache/" + shard.ModelID, nil
}

// fakeBackend builds fakeModels whose output is produced by forward.
type fakeBackend struct {
	mu      sync.Mutex
	loads   int
	models  []*fakeModel
	forward func(in types.Tensor, startPos int) (types.Tensor, error)
	loadErr error
}

func (b *fakeBackend) Load(_ context.Context, dir string, shard types.Shard) (Model, Tokenizer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, nil, b.loadErr
	}
	b.loads++
	m := &fakeModel{dir: dir, shard: shard, forward: b.forward}
	b.models = append(b.models, m)
	return m, wordTokenizer{}, nil
}

type fakeModel struct {
	dir     string
	shard   types.Shard
	forward func(in types.Tensor, startPos int) (types.Tensor, error)

	mu        sync.Mutex
	positions []int
	closed    bool
}

func (m *fakeModel) Forward(_ context.Context, in types.Tensor, startPos int) (types.Tensor, error) {
	m.mu.Lock()
	m.positions = append(m.positions, startPos)
	m.mu.Unlock()
	if m.forward == nil {
		return types.Tensor{Shape: []int{1}, Data: []float32{7}}, nil
	}
	return m.forward(in, startPos)
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

// wordTokenizer maps each whitespace separated word to id 100+len(word).
type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) ([]int, error) {
	words := strings.Fields(text)
	out := make([]int, len(words))
	for i, w := range words {
		out[i] = 100 + len(w)
	}
	return out, nil
}

func (wordTokenizer) EOSTokenID() int { return testEOS }

func scalar(id int) func(types.Tensor, int) (types.Tensor, error) {
	return func(types.Tensor, int) (types.Tensor, error) {
		return types.Tensor{Shape: []int{1}, Data: []float32{float32(id)}}, nil
	}
}

func hidden(types.Tensor, int) (types.Tensor, error) {
	return types.Tensor{Shape: []int{1, 2, 2}, Data: []float32{0.1, 0.2, 0.3, 0.4}}, nil
}

func newTestEngine(acq Acquirer, be Backend) *Engine {
	return New(Config{Name: "test", Acquirer: acq, Backend: be, MaxWait: 50 * time.Millisecond})
}

var (
	shardA = types.Shard{ModelID: "org/m", StartLayer: 0, EndLayer: 15, NLayers: 16}
	shardB = types.Shard{ModelID: "org/m", StartLayer: 0, EndLayer: 7, NLayers: 16}
)

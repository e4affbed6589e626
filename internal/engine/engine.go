package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shardd/pkg/types"
)

// State represents the lifecycle state of the cache slot.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
)

// slot is the single resident shard. It is only written while holding the
// admission gate.
type slot struct {
	shard     types.Shard
	model     Model
	tokenizer Tokenizer
}

// Engine owns one cache slot and serializes every operation on it.
type Engine struct {
	name     string
	acquirer Acquirer
	backend  Backend
	log      zerolog.Logger

	mu      sync.RWMutex
	state   State
	cur     *slot
	err     string
	loads   uint64
	pub     EventPublisher
	maxWait time.Duration

	// Queueing primitives
	genCh   chan struct{} // size 1: single in-flight operation
	queueCh chan struct{} // buffered: queue slots

	startTime time.Time
}

// Name returns the engine namespace used for download statuses.
func (e *Engine) Name() string { return e.name }

// LoadedShard returns the resident shard, if any.
func (e *Engine) LoadedShard() (types.Shard, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.cur == nil {
		return types.Shard{}, false
	}
	return e.cur.shard, true
}

// Ready reports whether a shard is loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cur != nil
}

package engine

import (
	"context"

	"shardd/pkg/types"
)

// Acquirer resolves a shard to a local directory holding its weights.
// The download package's Downloader satisfies it.
type Acquirer interface {
	EnsureShard(ctx context.Context, shard types.Shard, engine string) (string, error)
}

// Backend builds runnable models from weight directories. Implementations own
// all tensor math; the engine only routes tensors and continuation state.
type Backend interface {
	// Load builds the model restricted to shard's layer range and the
	// tokenizer found alongside the weights in dir.
	Load(ctx context.Context, dir string, shard types.Shard) (Model, Tokenizer, error)
}

// Model runs a forward pass over its layer range. A final-stage shard returns
// a rank-0 or rank-1 single-element tensor holding the sampled token id; any other stage
// returns hidden states for the next stage.
// Models that implement io.Closer are closed when evicted from the slot.
type Model interface {
	Forward(ctx context.Context, input types.Tensor, startPos int) (types.Tensor, error)
}

// Tokenizer turns prompts into token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	EOSTokenID() int
}

// unavailableBackend refuses every load. It is used when no execution
// backend is compiled into the binary.
type unavailableBackend struct{}

// NewUnavailableBackend returns a Backend whose Load always fails with a
// dependency-unavailable error.
func NewUnavailableBackend() Backend { return unavailableBackend{} }

func (unavailableBackend) Load(context.Context, string, types.Shard) (Model, Tokenizer, error) {
	return nil, nil, ErrDependencyUnavailable("no execution backend built into this binary")
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"shardd/pkg/types"
)

// EnsureShard makes shard the resident shard. It is a no-op when shard is
// already loaded; otherwise the artifacts are resolved, the backend builds
// the model and tokenizer, and the previous slot contents are released.
// A failed load leaves the previous shard resident.
func (e *Engine) EnsureShard(ctx context.Context, shard types.Shard) error {
	release, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer release()
	_, err = e.ensureLocked(ctx, shard)
	return err
}

// ensureLocked must be called while holding the admission gate.
func (e *Engine) ensureLocked(ctx context.Context, shard types.Shard) (*slot, error) {
	e.mu.RLock()
	cur := e.cur
	e.mu.RUnlock()
	if cur != nil && cur.shard == shard {
		return cur, nil
	}
	if err := shard.Validate(); err != nil {
		return nil, err
	}
	if e.acquirer == nil {
		return nil, ErrDependencyUnavailable("no artifact resolver configured")
	}

	e.mu.Lock()
	e.state = StateLoading
	e.err = ""
	e.mu.Unlock()
	e.publish(Event{Name: "ensure_start", ModelID: shard.ModelID, Fields: map[string]any{"shard": shard.String()}})
	e.log.Info().Str("event", "ensure_start").Str("shard", shard.String()).Msg("loading shard")

	dir, err := e.acquirer.EnsureShard(ctx, shard, e.name)
	if err != nil {
		return nil, e.fail(shard, fmt.Errorf("ensure shard %s: %w", shard, err))
	}
	model, tok, err := e.backend.Load(ctx, dir, shard)
	if err == nil && (model == nil || tok == nil) {
		err = errors.New("backend returned no model or tokenizer")
	}
	if err != nil {
		return nil, e.fail(shard, fmt.Errorf("load shard %s: %w", shard, err))
	}

	next := &slot{shard: shard, model: model, tokenizer: tok}
	e.mu.Lock()
	prev := e.cur
	e.cur = next
	e.loads++
	loads := e.loads
	e.state = StateReady
	e.mu.Unlock()
	engineLoads.Inc()

	if prev != nil {
		if c, ok := prev.model.(io.Closer); ok {
			if err := c.Close(); err != nil {
				e.log.Warn().Err(err).Str("event", "unload_error").Str("shard", prev.shard.String()).Msg("close previous model")
			}
		}
	}
	e.publish(Event{Name: "ensure_ready", ModelID: shard.ModelID, Fields: map[string]any{"shard": shard.String(), "path": dir, "loads": loads}})
	e.log.Info().Str("event", "ensure_ready").Str("shard", shard.String()).Str("path", dir).Uint64("loads", loads).Msg("shard loaded")
	return next, nil
}

// fail records err; the slot keeps whatever was resident before.
func (e *Engine) fail(shard types.Shard, err error) error {
	e.mu.Lock()
	e.err = err.Error()
	if e.cur != nil {
		e.state = StateReady
	} else {
		e.state = StateError
	}
	e.mu.Unlock()
	e.publish(Event{Name: "ensure_error", ModelID: shard.ModelID, Fields: map[string]any{"shard": shard.String(), "error": err.Error()}})
	e.log.Error().Err(err).Str("event", "ensure_error").Str("shard", shard.String()).Msg("shard load failed")
	return err
}

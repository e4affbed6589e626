package engine

import (
	"context"
	"fmt"
	"math"

	"shardd/pkg/types"
)

// Result is the outcome of one pipeline step on this node.
type Result struct {
	// Output is [[token_id]] on a final stage, hidden states otherwise.
	Output types.Tensor
	// State is the encoded continuation to hand to the next call.
	State string
	// Terminal is set when a final stage sampled the end-of-sequence token.
	Terminal bool
}

// InferPrompt tokenizes prompt and runs it through shard, resuming at the
// position carried by state.
//
// On a final stage the sampled token is returned, start_pos advances by the
// prompt length and n_captured_toks resets to 1 (the sampled token). On an
// intermediate stage start_pos is left for the final stage to advance, and
// n_captured_toks grows by the prompt length plus one for the token the final
// stage will sample.
func (e *Engine) InferPrompt(ctx context.Context, requestID string, shard types.Shard, prompt, state string) (Result, error) {
	release, err := e.begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	s, err := e.ensureLocked(ctx, shard)
	if err != nil {
		return Result{}, err
	}
	c := e.decodeState(requestID, state)

	toks, err := s.tokenizer.Encode(prompt)
	if err != nil {
		return Result{}, fmt.Errorf("tokenize: %w", err)
	}
	out, err := s.model.Forward(ctx, types.TokenTensor(toks), c.StartPos)
	if err != nil {
		return Result{}, fmt.Errorf("forward %s: %w", shard, err)
	}

	if out.IsScalar() {
		id := tokenID(out)
		next := Continuation{StartPos: c.StartPos + len(toks), NCapturedToks: 1}
		e.observe(requestID, "prompt", "final", next)
		return Result{Output: tokenOutput(id), State: next.Encode(), Terminal: id == s.tokenizer.EOSTokenID()}, nil
	}
	c.NCapturedToks += len(toks)
	next := Continuation{StartPos: c.StartPos, NCapturedToks: c.NCapturedToks + 1}
	e.observe(requestID, "prompt", "intermediate", next)
	return Result{Output: out, State: next.Encode()}, nil
}

// InferTensor runs an upstream stage's output through shard.
//
// On a final stage start_pos advances by the tokens captured so far and
// n_captured_toks resets to 1. On an intermediate stage the decoded state is
// passed through unchanged.
func (e *Engine) InferTensor(ctx context.Context, requestID string, shard types.Shard, input types.Tensor, state string) (Result, error) {
	release, err := e.begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	s, err := e.ensureLocked(ctx, shard)
	if err != nil {
		return Result{}, err
	}
	c := e.decodeState(requestID, state)

	out, err := s.model.Forward(ctx, input, c.StartPos)
	if err != nil {
		return Result{}, fmt.Errorf("forward %s: %w", shard, err)
	}

	if out.IsScalar() {
		id := tokenID(out)
		next := Continuation{StartPos: c.StartPos + c.NCapturedToks, NCapturedToks: 1}
		e.observe(requestID, "tensor", "final", next)
		return Result{Output: tokenOutput(id), State: next.Encode(), Terminal: id == s.tokenizer.EOSTokenID()}, nil
	}
	e.observe(requestID, "tensor", "intermediate", c)
	return Result{Output: out, State: c.Encode()}, nil
}

func (e *Engine) observe(requestID, kind, stage string, next Continuation) {
	inferTotal.WithLabelValues(stage).Inc()
	e.log.Debug().Str("event", "infer_done").Str("request_id", requestID).Str("kind", kind).Str("stage", stage).
		Int("start_pos", next.StartPos).Int("n_captured_toks", next.NCapturedToks).Msg("inference step")
}

func tokenID(t types.Tensor) int { return int(math.Round(float64(t.Data[0]))) }

// tokenOutput wraps a sampled token as [[id]].
func tokenOutput(id int) types.Tensor {
	return types.Tensor{Shape: []int{1, 1}, Data: []float32{float32(id)}}
}

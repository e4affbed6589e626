package engine

import (
	"encoding/json"
	"errors"
	"strings"
)

// Continuation is the decoding position handed between calls. Its JSON form
// {"start_pos":N,"n_captured_toks":M} is the wire format exchanged with peers.
type Continuation struct {
	// StartPos is the next position in the model's KV cache.
	StartPos int `json:"start_pos"`
	// NCapturedToks counts tokens processed but not yet folded into StartPos.
	NCapturedToks int `json:"n_captured_toks"`
}

// DecodeState parses raw. Empty input is a fresh start. Missing keys default
// to zero; malformed JSON or negative values yield an *InvalidStateError.
func DecodeState(raw string) (Continuation, error) {
	if strings.TrimSpace(raw) == "" {
		return Continuation{}, nil
	}
	var c Continuation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Continuation{}, &InvalidStateError{Raw: raw, Err: err}
	}
	if c.StartPos < 0 || c.NCapturedToks < 0 {
		return Continuation{}, &InvalidStateError{Raw: raw, Err: errors.New("negative position")}
	}
	return c, nil
}

// Encode renders c in its wire format.
func (c Continuation) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// decodeState falls back to a fresh start on malformed input.
func (e *Engine) decodeState(requestID, raw string) Continuation {
	c, err := DecodeState(raw)
	if err != nil {
		e.log.Warn().Err(err).Str("event", "invalid_state").Str("request_id", requestID).Msg("continuation state reset")
		return Continuation{}
	}
	return c
}

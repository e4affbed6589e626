package types

import "fmt"

// Shard identifies a contiguous, inclusive layer range of a model.
// Shards are compared by value; two shards are equal iff all fields match.
type Shard struct {
	// Model identifier (hub repository id or local directory).
	// example: mlx-community/Llama-3.2-1B-Instruct-4bit
	ModelID string `json:"model_id" example:"mlx-community/Llama-3.2-1B-Instruct-4bit"`
	// First layer held by this shard (inclusive).
	// example: 0
	StartLayer int `json:"start_layer" example:"0"`
	// Last layer held by this shard (inclusive).
	// example: 15
	EndLayer int `json:"end_layer" example:"15"`
	// Total number of layers in the model.
	// example: 16
	NLayers int `json:"n_layers" example:"16"`
}

// Validate checks 0 <= start <= end < n_layers and a non-empty model id.
func (s Shard) Validate() error {
	if s.ModelID == "" {
		return fmt.Errorf("shard: empty model id")
	}
	if s.StartLayer < 0 || s.StartLayer > s.EndLayer || s.EndLayer >= s.NLayers {
		return fmt.Errorf("shard %s: invalid layer range [%d,%d] of %d", s.ModelID, s.StartLayer, s.EndLayer, s.NLayers)
	}
	return nil
}

// IsFirstLayer reports whether the shard holds the model's first layer.
func (s Shard) IsFirstLayer() bool { return s.StartLayer == 0 }

// IsLastLayer reports whether the shard holds the model's final layer.
func (s Shard) IsLastLayer() bool { return s.EndLayer == s.NLayers-1 }

// LayerCount is the number of layers in the shard.
func (s Shard) LayerCount() int { return s.EndLayer - s.StartLayer + 1 }

func (s Shard) String() string {
	return fmt.Sprintf("%s[%d-%d/%d]", s.ModelID, s.StartLayer, s.EndLayer, s.NLayers)
}

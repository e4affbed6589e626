package types

// Tensor is the opaque payload exchanged with the execution backend and
// forwarded between pipeline stages. Data is row-major.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// IsScalar reports whether the tensor holds exactly one element, which is how
// a final pipeline stage returns its sampled token id.
// A one-element tensor of higher rank is still a hidden state.
func (t Tensor) IsScalar() bool { return len(t.Shape) <= 1 && len(t.Data) == 1 }

// TokenTensor wraps token ids as a [1, n] tensor.
func TokenTensor(toks []int) Tensor {
	data := make([]float32, len(toks))
	for i, tok := range toks {
		data[i] = float32(tok)
	}
	return Tensor{Shape: []int{1, len(toks)}, Data: data}
}

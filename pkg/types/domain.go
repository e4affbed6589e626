package types

// Model is a locally present model directory discovered in the cache.
type Model struct {
	// Model identifier derived from the cache folder name.
	// example: mlx-community/Llama-3.2-1B-Instruct-4bit
	ID string `json:"id" example:"mlx-community/Llama-3.2-1B-Instruct-4bit"`
	// Absolute path of the model directory.
	// example: /home/user/.cache/shardd/models--mlx-community--Llama-3.2-1B-Instruct-4bit
	Path string `json:"path" example:"/home/user/.cache/shardd/models--mlx-community--Llama-3.2-1B-Instruct-4bit"`
	// Weight files found in the directory.
	// example: ["model.safetensors"]
	WeightFiles []string `json:"weight_files" example:"model.safetensors"`
	// Total bytes on disk.
	// example: 1048576000
	SizeBytes int64 `json:"size_bytes" example:"1048576000"`
	// Whether the acquisition completed (completion marker present).
	// example: true
	Complete bool `json:"complete" example:"true"`
}

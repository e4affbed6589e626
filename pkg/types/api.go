package types

// InferPromptRequest runs a prompt through the shard held by this node.
type InferPromptRequest struct {
	// Optional request identifier; generated when empty.
	// example: 3f1c2a9e-0c55-4d9b-8b0a-6a3f2f0b9d11
	RequestID string `json:"request_id,omitempty" example:"3f1c2a9e-0c55-4d9b-8b0a-6a3f2f0b9d11"`
	// Shard to run.
	Shard Shard `json:"shard"`
	// Prompt text to tokenize.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Continuation state from the previous call; empty starts fresh.
	// example: {"start_pos":12,"n_captured_toks":1}
	State string `json:"inference_state,omitempty" example:"{\"start_pos\":12,\"n_captured_toks\":1}"`
}

// InferTensorRequest runs an upstream stage's tensor through this node's shard.
type InferTensorRequest struct {
	// Optional request identifier; generated when empty.
	RequestID string `json:"request_id,omitempty"`
	// Shard to run.
	Shard Shard `json:"shard"`
	// Intermediate tensor produced by the previous stage.
	Tensor Tensor `json:"tensor"`
	// Continuation state from the previous call; empty starts fresh.
	State string `json:"inference_state,omitempty"`
}

// InferResponse carries the output tensor and the next continuation state.
type InferResponse struct {
	RequestID string `json:"request_id"`
	Output    Tensor `json:"output"`
	// Continuation state to pass to the next call.
	// example: {"start_pos":13,"n_captured_toks":1}
	State string `json:"inference_state" example:"{\"start_pos\":13,\"n_captured_toks\":1}"`
	// True when the sampled token is the end-of-sequence token.
	// example: false
	Terminal bool `json:"is_finished" example:"false"`
}

// PrefetchRequest starts acquiring a shard's artifacts in the background.
type PrefetchRequest struct {
	Shard Shard `json:"shard"`
	// Optional engine namespace; the server default is used when empty.
	// example: tinygrad
	Engine string `json:"engine,omitempty" example:"tinygrad"`
}

// PrefetchResponse returns the background operation id.
type PrefetchResponse struct {
	// example: 9b2d3c4e-7f10-4a2b-9c3d-1e2f3a4b5c6d
	OperationID string `json:"operation_id" example:"9b2d3c4e-7f10-4a2b-9c3d-1e2f3a4b5c6d"`
}

// ShardDownload pairs a shard with its retained download status.
type ShardDownload struct {
	Shard  Shard          `json:"shard"`
	Status DownloadStatus `json:"status"`
	// Fraction of the artifact set present, 0..1.
	// example: 0.5
	Fraction float64 `json:"fraction" example:"0.5"`
}

// DownloadsResponse is returned by GET /downloads.
type DownloadsResponse struct {
	// example: tinygrad
	Engine    string          `json:"engine" example:"tinygrad"`
	Downloads []ShardDownload `json:"downloads"`
}

// ModelsResponse wraps the locally cached models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine namespace of this node.
	// example: tinygrad
	Engine string `json:"engine" example:"tinygrad"`
	// Lifecycle state of the engine (unloaded, loading, ready, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// Shard currently resident, if any.
	LoadedShard *Shard `json:"loaded_shard,omitempty"`
	// Total number of model loads performed.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Current queue length for engine operations.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight engine operations (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued operations allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Last error observed by the engine (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// OperationStatus reports a background prefetch started via POST /shards/prefetch.
type OperationStatus struct {
	// example: 9b2d3c4e-7f10-4a2b-9c3d-1e2f3a4b5c6d
	OperationID string `json:"operation_id" example:"9b2d3c4e-7f10-4a2b-9c3d-1e2f3a4b5c6d"`
	Shard       Shard  `json:"shard"`
	// example: tinygrad
	Engine string `json:"engine" example:"tinygrad"`
	// One of running, done, failed.
	// example: running
	State string `json:"state" example:"running"`
	// Local directory of the shard once done.
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

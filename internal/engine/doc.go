// Package engine holds the shard-local inference state of a node: the single
// resident shard with its model and tokenizer, and the continuation state that
// lets a generation resume across calls and nodes. It is structured into small
// files by concern:
//
//   - engine.go: core Engine type, constructor, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - backend.go: Backend, Model, Tokenizer and Acquirer collaborators.
//   - errors.go: error types and helpers (IsTooBusy, IsDependencyUnavailable, IsInvalidState).
//   - admission.go: single in-flight operation with a bounded wait queue.
//   - ensure.go: EnsureShard cache slot logic.
//   - state.go: continuation state codec.
//   - infer.go: InferPrompt and InferTensor.
//   - status.go: Snapshot/Status reporting helpers.
//   - events.go, eventpub_memory.go, eventpub_log.go: lifecycle events.
//
// External packages should use public methods only (New, EnsureShard,
// InferPrompt, InferTensor, LoadedShard, Snapshot, Status).
package engine

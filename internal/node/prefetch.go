package node

import (
	"context"

	"github.com/google/uuid"

	"shardd/pkg/types"
)

// Operation states.
const (
	OpRunning = "running"
	OpDone    = "done"
	OpFailed  = "failed"
)

// Prefetch starts acquiring req.Shard in the background under ctx and returns
// the operation id. The acquisition is independent of any engine load.
func (n *Node) Prefetch(ctx context.Context, req types.PrefetchRequest) (string, error) {
	if err := req.Shard.Validate(); err != nil {
		return "", err
	}
	engineName := req.Engine
	if engineName == "" {
		engineName = n.eng.Name()
	}
	op := &types.OperationStatus{OperationID: uuid.NewString(), Shard: req.Shard, Engine: engineName, State: OpRunning}
	n.mu.Lock()
	n.ops[op.OperationID] = op
	n.mu.Unlock()

	n.log.Info().Str("event", "prefetch_start").Str("operation_id", op.OperationID).Str("shard", req.Shard.String()).Msg("prefetch started")
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		path, err := n.dl.EnsureShard(ctx, req.Shard, engineName)
		n.mu.Lock()
		defer n.mu.Unlock()
		if err != nil {
			op.State = OpFailed
			op.Error = err.Error()
			return
		}
		op.State = OpDone
		op.Path = path
	}()
	return op.OperationID, nil
}

// Operation returns a copy of the prefetch operation with id.
func (n *Node) Operation(id string) (types.OperationStatus, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	op, ok := n.ops[id]
	if !ok {
		return types.OperationStatus{}, false
	}
	return *op, true
}

// Wait blocks until every background prefetch has returned.
func (n *Node) Wait() { n.wg.Wait() }

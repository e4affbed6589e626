package engine

import (
	"time"

	"shardd/pkg/types"
)

// Snapshot is a read-only projection of the engine state.
type Snapshot struct {
	State State
	Shard *types.Shard
	Loads uint64
	Err   string
}

// Snapshot returns a read-only view of the engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Snapshot{State: e.state, Loads: e.loads, Err: e.err}
	if e.cur != nil {
		sh := e.cur.shard
		s.Shard = &sh
	}
	return s
}

// Status builds a detailed status response for /status.
func (e *Engine) Status() types.StatusResponse {
	snap := e.Snapshot()
	now := time.Now()
	return types.StatusResponse{
		Engine:         e.name,
		State:          string(snap.State),
		LoadedShard:    snap.Shard,
		LoadsTotal:     snap.Loads,
		QueueLen:       len(e.queueCh),
		Inflight:       len(e.genCh),
		MaxQueueDepth:  cap(e.queueCh),
		LastError:      snap.Err,
		UptimeSeconds:  int64(now.Sub(e.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

package node

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"shardd/internal/download"
	"shardd/pkg/types"
)

// broadcast is the throttled bus subscriber: it logs progress and forwards it
// to every listener.
func (n *Node) broadcast(shard types.Shard, ev types.ProgressEvent) {
	le := n.log.Info().
		Str("event", "download_progress").
		Str("shard", shard.String()).
		Str("status", string(ev.Status))
	if ev.Status == types.DownloadError {
		le.Str("error", ev.Error).Msg("download failed")
	} else {
		le.Str("downloaded", humanize.Bytes(uint64(max(ev.DownloadedBytes, 0)))).
			Str("total", humanize.Bytes(uint64(max(ev.TotalBytes, 0)))).
			Float64("percent", download.Percent(ev.DownloadedBytes, ev.TotalBytes)).
			Msg("download progress")
	}

	n.mu.Lock()
	fns := make([]func(types.Shard, types.ProgressEvent), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(shard, ev)
	}
}

// Subscribe adds a listener for throttled progress. The returned func
// removes it.
func (n *Node) Subscribe(fn func(types.Shard, types.ProgressEvent)) (unsubscribe func()) {
	id := uuid.NewString()
	n.mu.Lock()
	n.listeners[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

package download

import (
	"time"

	"golang.org/x/time/rate"

	"shardd/pkg/types"
)

// DefaultBroadcastInterval limits forwarded progress to ten events a second.
const DefaultBroadcastInterval = 100 * time.Millisecond

// Throttle wraps fn so that at most one event per interval is forwarded.
// Terminal events (complete and error) are always forwarded so consumers
// never miss the end of an acquisition.
func Throttle(interval time.Duration, fn ProgressFunc) ProgressFunc {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	return func(shard types.Shard, ev types.ProgressEvent) {
		if ev.Status == types.DownloadComplete || ev.Status == types.DownloadError || lim.Allow() {
			fn(shard, ev)
		}
	}
}

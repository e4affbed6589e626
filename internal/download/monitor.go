package download

import (
	"context"
	"time"

	"shardd/internal/common/fsutil"
)

// DefaultMonitorInterval is the sampling period of Monitor.
const DefaultMonitorInterval = 100 * time.Millisecond

// Percent returns min(current/total*100, 100). A non-positive total counts as
// already complete.
func Percent(current, total int64) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(current) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Monitor samples the on-disk size of dir every interval and reports it via
// onProgress until the size reaches total. It returns nil once complete, or
// the context error when cancelled first.
func Monitor(ctx context.Context, dir string, total int64, interval time.Duration, onProgress func(current, total int64)) error {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	t := time.NewTimer(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		current, err := fsutil.DirSize(dir)
		if err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(current, total)
		}
		if Percent(current, total) >= 100 {
			return nil
		}
		t.Reset(interval)
	}
}

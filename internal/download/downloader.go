package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"shardd/internal/common/fsutil"
	"shardd/internal/registry"
	"shardd/pkg/types"
)

// DefaultMaxParallel bounds concurrent file fetches when unset.
const DefaultMaxParallel = 4

// Config controls artifact resolution.
type Config struct {
	// CacheDir holds one models--org--name folder per model.
	CacheDir string
	// Revision of hub repositories; empty means main.
	Revision string
	// QuickCheck trusts any cache folder that already holds weight files.
	QuickCheck      bool
	MaxParallel     int
	MonitorInterval time.Duration
	// Timeout bounds a whole acquisition (listing, transfer and monitoring).
	// Zero disables the deadline.
	Timeout   time.Duration
	Logger    zerolog.Logger
	Persister Persister
}

type waiter struct {
	engine string
	shard  types.Shard
}

// Downloader resolves shards to local directories holding their weights,
// fetching the allow-listed artifact set from a Source when needed.
type Downloader struct {
	src      Source
	cfg      Config
	log      zerolog.Logger
	bus      *Bus
	statuses *StatusStore
	flights  singleflight.Group

	mu      sync.Mutex
	waiters map[string][]waiter // by model id
	cancels map[string]context.CancelCauseFunc

	now func() time.Time
}

// New builds a Downloader around src.
func New(src Source, cfg Config) *Downloader {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	return &Downloader{
		src:      src,
		cfg:      cfg,
		log:      cfg.Logger,
		bus:      NewBus(),
		statuses: NewStatusStore(cfg.Persister, cfg.Logger),
		waiters:  make(map[string][]waiter),
		cancels:  make(map[string]context.CancelCauseFunc),
		now:      time.Now,
	}
}

// OnProgress exposes the progress bus for subscriber registration.
func (d *Downloader) OnProgress() *Bus { return d.bus }

// CacheDir returns the configured cache root.
func (d *Downloader) CacheDir() string { return d.cfg.CacheDir }

// ShardDownloadStatus returns a copy of every status recorded under engine.
func (d *Downloader) ShardDownloadStatus(engine string) map[types.Shard]types.DownloadStatus {
	return d.statuses.Snapshot(engine)
}

// Status returns the status of one (engine, shard) pair.
func (d *Downloader) Status(engine string, shard types.Shard) types.DownloadStatus {
	return d.statuses.Get(engine, shard)
}

// errAbandoned cancels a shared acquisition once no caller waits on it.
var errAbandoned = errors.New("acquisition abandoned by every caller")

// EnsureShard returns a local directory that holds shard's weight files,
// fetching them first when they are not already present. Concurrent calls
// for the same model share one acquisition. It keeps running while at least
// one caller waits on it and is cancelled when the last one gives up.
func (d *Downloader) EnsureShard(ctx context.Context, shard types.Shard, engine string) (string, error) {
	if err := shard.Validate(); err != nil {
		return "", err
	}
	w := waiter{engine: engine, shard: shard}
	for {
		d.addWaiter(shard.ModelID, w)
		ch := d.flights.DoChan(shard.ModelID, func() (any, error) {
			return d.runFlight(ctx, shard)
		})
		select {
		case <-ctx.Done():
			d.abandon(shard.ModelID, w)
			return "", &TransferError{Op: "fetch", ModelID: shard.ModelID, Err: ctx.Err()}
		case r := <-ch:
			d.removeWaiter(shard.ModelID, w)
			if r.Err != nil {
				// joined a flight that was being torn down
				if errors.Is(r.Err, errAbandoned) && ctx.Err() == nil {
					continue
				}
				// Followers joined after the leader recorded the failure.
				d.statuses.Set(engine, shard, d.failedStatus(engine, shard))
				return "", r.Err
			}
			path := r.Val.(string)
			if st := d.statuses.Get(engine, shard); st.Status != types.DownloadComplete {
				size, _ := fsutil.DirSize(path)
				d.statuses.Set(engine, shard, types.DownloadStatus{DownloadedBytes: size, TotalBytes: size, Status: types.DownloadComplete})
			}
			return path, nil
		}
	}
}

// runFlight resolves shard detached from the caller that started it. The
// flight is cancelled through d.cancels when its last waiter leaves.
func (d *Downloader) runFlight(parent context.Context, shard types.Shard) (any, error) {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	defer cancel(nil)
	if !d.startFlight(shard.ModelID, cancel) {
		return nil, &TransferError{Op: "fetch", ModelID: shard.ModelID, Err: errAbandoned}
	}
	defer d.endFlight(shard.ModelID)

	path, err := d.resolve(ctx, shard)
	if err != nil {
		if errors.Is(context.Cause(ctx), errAbandoned) {
			return nil, &TransferError{Op: "fetch", ModelID: shard.ModelID, Err: errAbandoned}
		}
		return nil, err
	}
	return path, nil
}

func (d *Downloader) resolve(ctx context.Context, shard types.Shard) (path string, err error) {
	start := d.now()
	modelID := shard.ModelID
	defer func() {
		ensureTotal.WithLabelValues(resultLabel(err)).Inc()
		ensureDuration.Observe(d.now().Sub(start).Seconds())
		if err != nil {
			d.fail(shard, err)
		}
	}()

	if dir, ok, lerr := localModelDir(modelID); ok || lerr != nil {
		if lerr != nil {
			return "", lerr
		}
		if !registry.HasWeights(dir) {
			return "", &MissingArtifactError{ModelID: modelID, Dir: dir, Err: registry.ErrNoWeights}
		}
		d.log.Debug().Str("event", "ensure_local").Str("model_id", modelID).Str("path", dir).Msg("using local model directory")
		d.complete(shard, dir, 0)
		return dir, nil
	}

	dir := registry.ModelDir(d.cfg.CacheDir, modelID)
	if registry.IsComplete(dir) || (d.cfg.QuickCheck && registry.HasWeights(dir)) {
		d.log.Debug().Str("event", "ensure_cached").Str("model_id", modelID).Str("path", dir).Msg("artifacts already present")
		d.complete(shard, dir, 0)
		return dir, nil
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	files, err := d.src.ListFiles(ctx, modelID, d.cfg.Revision)
	if err != nil {
		return "", d.classify(ctx, modelID, "list", err)
	}
	files = FilterAllowed(files)
	total := TotalSize(files)
	present, _ := fsutil.DirSize(dir)
	d.log.Info().Str("event", "ensure_start").Str("model_id", modelID).Int("files", len(files)).
		Str("total", humanize.Bytes(uint64(total))).Str("present", humanize.Bytes(uint64(present))).Msg("fetching artifacts")
	d.setAll(modelID, types.DownloadStatus{DownloadedBytes: present, TotalBytes: total, Status: types.DownloadInProgress})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fetchAll(gctx, d.src, modelID, d.cfg.Revision, dir, files, d.cfg.MaxParallel)
	})
	g.Go(func() error {
		err := Monitor(gctx, dir, total, d.cfg.MonitorInterval, func(current, total int64) {
			d.progress(shard, start, present, current, total)
		})
		if err != nil && gctx.Err() == nil {
			return &TransferError{Op: "monitor", ModelID: modelID, Err: err}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return "", d.classify(ctx, modelID, "fetch", err)
	}

	if !registry.HasWeights(dir) {
		return "", &MissingArtifactError{ModelID: modelID, Dir: dir, Err: registry.ErrNoWeights}
	}
	if err := registry.MarkComplete(dir); err != nil {
		return "", &TransferError{Op: "fetch", ModelID: modelID, Err: err}
	}
	d.log.Info().Str("event", "ensure_done").Str("model_id", modelID).Str("path", dir).
		Dur("elapsed", d.now().Sub(start)).Msg("artifacts ready")
	d.complete(shard, dir, total)
	return dir, nil
}

// classify turns a deadline hit into a timeout failure and wraps anything
// unclassified as a transfer failure.
func (d *Downloader) classify(ctx context.Context, modelID, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && d.cfg.Timeout > 0 {
		return &TransferError{Op: "timeout", ModelID: modelID, Err: fmt.Errorf("acquisition exceeded %s: %w", d.cfg.Timeout, context.DeadlineExceeded)}
	}
	return asTransferError(op, modelID, err)
}

func (d *Downloader) progress(shard types.Shard, start time.Time, startBytes, current, total int64) {
	ev := types.ProgressEvent{
		ModelID:         shard.ModelID,
		DownloadedBytes: current,
		TotalBytes:      total,
		Status:          types.DownloadInProgress,
		Timestamp:       d.now(),
	}
	if elapsed := ev.Timestamp.Sub(start).Seconds(); elapsed > 0 && current > startBytes {
		ev.SpeedBps = float64(current-startBytes) / elapsed
		if remaining := total - current; remaining > 0 {
			ev.ETASeconds = float64(remaining) / ev.SpeedBps
		}
	}
	downloadBytes.Set(float64(current))
	d.setAll(shard.ModelID, ev.AsStatus())
	d.bus.Publish(shard, ev)
}

// complete publishes the terminal event. total is the expected size of the
// artifact set; when unknown (cache hits, local paths) the directory is measured.
func (d *Downloader) complete(shard types.Shard, dir string, total int64) {
	size := total
	if size <= 0 {
		size, _ = fsutil.DirSize(dir)
	}
	ev := types.ProgressEvent{
		ModelID:         shard.ModelID,
		DownloadedBytes: size,
		TotalBytes:      size,
		Status:          types.DownloadComplete,
		Timestamp:       d.now(),
	}
	d.setAll(shard.ModelID, ev.AsStatus())
	d.bus.Publish(shard, ev)
}

func (d *Downloader) fail(shard types.Shard, err error) {
	d.log.Error().Err(err).Str("event", "ensure_failed").Str("model_id", shard.ModelID).Msg("artifact acquisition failed")
	d.mu.Lock()
	for _, w := range d.waiters[shard.ModelID] {
		d.statuses.Set(w.engine, w.shard, d.failedStatus(w.engine, w.shard))
	}
	d.mu.Unlock()
	d.bus.Publish(shard, types.ProgressEvent{
		ModelID:   shard.ModelID,
		Status:    types.DownloadError,
		Timestamp: d.now(),
		Error:     err.Error(),
	})
}

// failedStatus keeps the last known byte counts and marks the pair errored.
func (d *Downloader) failedStatus(engine string, shard types.Shard) types.DownloadStatus {
	st := d.statuses.Get(engine, shard)
	st.Status = types.DownloadError
	return st
}

// setAll records st for every caller currently waiting on modelID. The lock
// is held so a caller that leaves is never overwritten after its own update.
func (d *Downloader) setAll(modelID string, st types.DownloadStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.waiters[modelID] {
		d.statuses.Set(w.engine, w.shard, st)
	}
}

func (d *Downloader) addWaiter(modelID string, w waiter) {
	d.mu.Lock()
	d.waiters[modelID] = append(d.waiters[modelID], w)
	d.mu.Unlock()
}

func (d *Downloader) removeWaiter(modelID string, w waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(modelID, w)
}

// abandon drops a caller whose context ended. Its pair is marked errored
// unless another caller still waits on the same pair.
func (d *Downloader) abandon(modelID string, w waiter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(modelID, w)
	for _, other := range d.waiters[modelID] {
		if other == w {
			return
		}
	}
	d.statuses.Set(w.engine, w.shard, d.failedStatus(w.engine, w.shard))
}

// removeLocked removes one registration of w and cancels the running flight
// when no caller is left. d.mu must be held.
func (d *Downloader) removeLocked(modelID string, w waiter) {
	ws := d.waiters[modelID]
	for i := range ws {
		if ws[i] == w {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) > 0 {
		d.waiters[modelID] = ws
		return
	}
	delete(d.waiters, modelID)
	if cancel, ok := d.cancels[modelID]; ok {
		cancel(errAbandoned)
	}
}

// startFlight registers the cancel func of a starting flight. It reports
// false when every caller already left.
func (d *Downloader) startFlight(modelID string, cancel context.CancelCauseFunc) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.waiters[modelID]) == 0 {
		return false
	}
	d.cancels[modelID] = cancel
	return true
}

func (d *Downloader) endFlight(modelID string) {
	d.mu.Lock()
	delete(d.cancels, modelID)
	d.mu.Unlock()
}

// localModelDir reports whether modelID is a filesystem path. Only ids that
// look like paths are considered so hub ids never hit the local disk.
func localModelDir(modelID string) (string, bool, error) {
	if !filepath.IsAbs(modelID) && !strings.HasPrefix(modelID, "./") &&
		!strings.HasPrefix(modelID, "../") && !strings.HasPrefix(modelID, "~") {
		return "", false, nil
	}
	p, err := fsutil.ExpandHome(modelID)
	if err != nil {
		return "", false, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false, err
	}
	if !fsutil.IsDir(abs) {
		return "", false, &NotFoundError{ModelID: modelID, Hint: notFoundHint(modelID), Err: os.ErrNotExist}
	}
	return abs, true, nil
}

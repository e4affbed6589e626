package download

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shardd/pkg/types"
)

// Persister stores status snapshots beyond process lifetime.
type Persister interface {
	SaveStatus(ctx context.Context, engine string, shard types.Shard, st types.DownloadStatus) error
}

// StatusStore keeps the latest DownloadStatus per (engine, shard). Writes
// that change the lifecycle state are forwarded to the Persister.
type StatusStore struct {
	mu      sync.RWMutex
	byEng   map[string]map[types.Shard]types.DownloadStatus
	persist Persister
	log     zerolog.Logger
}

// NewStatusStore returns a store; p may be nil.
func NewStatusStore(p Persister, log zerolog.Logger) *StatusStore {
	return &StatusStore{byEng: make(map[string]map[types.Shard]types.DownloadStatus), persist: p, log: log}
}

// Set records st for (engine, shard).
func (s *StatusStore) Set(engine string, shard types.Shard, st types.DownloadStatus) {
	s.mu.Lock()
	m, ok := s.byEng[engine]
	if !ok {
		m = make(map[types.Shard]types.DownloadStatus)
		s.byEng[engine] = m
	}
	prev, had := m[shard]
	m[shard] = st
	s.mu.Unlock()

	if s.persist == nil || (had && prev.Status == st.Status) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.persist.SaveStatus(ctx, engine, shard, st); err != nil {
		s.log.Warn().Err(err).Str("event", "status_persist_failed").Str("engine", engine).Str("shard", shard.String()).Msg("persist download status")
	}
}

// Get returns the status for (engine, shard); unknown pairs read as not_started.
func (s *StatusStore) Get(engine string, shard types.Shard) types.DownloadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.byEng[engine][shard]; ok {
		return st
	}
	return types.DownloadStatus{Status: types.DownloadNotStarted}
}

// Snapshot copies every status recorded for engine.
func (s *StatusStore) Snapshot(engine string) map[types.Shard]types.DownloadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[types.Shard]types.DownloadStatus, len(s.byEng[engine]))
	for k, v := range s.byEng[engine] {
		out[k] = v
	}
	return out
}

// Engines lists engine names with at least one recorded status.
func (s *StatusStore) Engines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byEng))
	for k := range s.byEng {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

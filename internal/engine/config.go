package engine

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultName          = "shardd"
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	// Name namespaces download statuses of this engine.
	Name     string
	Acquirer Acquirer
	// Backend defaults to one that reports the dependency as unavailable.
	Backend       Backend
	MaxQueueDepth int
	MaxWait       time.Duration
	Logger        zerolog.Logger
	Publisher     EventPublisher
}

// New constructs an Engine from Config.
func New(cfg Config) *Engine {
	e := &Engine{
		name:      cfg.Name,
		acquirer:  cfg.Acquirer,
		backend:   cfg.Backend,
		log:       cfg.Logger,
		pub:       cfg.Publisher,
		state:     StateUnloaded,
		startTime: time.Now(),
	}
	if e.name == "" {
		e.name = defaultName
	}
	if e.backend == nil {
		e.backend = NewUnavailableBackend()
	}
	if e.pub == nil {
		e.pub = noopPublisher{}
	}
	depth := cfg.MaxQueueDepth
	if depth <= 0 {
		depth = defaultMaxQueueDepth
	}
	e.maxWait = cfg.MaxWait
	if e.maxWait <= 0 {
		e.maxWait = defaultMaxWait
	}
	e.genCh = make(chan struct{}, 1)
	e.queueCh = make(chan struct{}, depth)
	return e
}

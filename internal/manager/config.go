package manager

import (
	"time"

	"github.com/rs/zerolog"

	"llamactx/internal/engine"
	"llamactx/internal/registry"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultWorkers = 2
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Binding is the native engine. Nil selects engine.NewLlamaBinding().
	Binding engine.Binding
	// Capacity bounds simultaneously open contexts (default 1).
	Capacity int
	// Workers bounds concurrent native calls (default 2).
	Workers   int
	Journal   Journal
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		publisher: noopPublisher{},
		log:       zerolog.Nop(),
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	if cfg.Publisher != nil {
		m.publisher = cfg.Publisher
	}
	if cfg.Journal != nil {
		m.journal = cfg.Journal
	}
	b := cfg.Binding
	if b == nil {
		b = engine.NewLlamaBinding()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	m.lane = newLane(workers)
	m.startTime = time.Now()
	m.reg = registry.New(b, cfg.Capacity, registry.WithLogger(m.log))
	return m
}

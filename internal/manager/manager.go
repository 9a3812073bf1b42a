package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llamactx/internal/engine"
	"llamactx/internal/journal"
	"llamactx/internal/llmctx"
	"llamactx/internal/registry"
)

// Journal records finished work. Failures are logged and never fail the
// operation that produced the record.
type Journal interface {
	RecordCompletion(journal.CompletionRecord) error
	RecordState(journal.StateRecord) error
}

type Manager struct {
	reg       *registry.Registry
	lane      *lane
	journal   Journal
	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time

	mu      sync.RWMutex
	lastErr string

	opens       atomic.Uint64
	generations atomic.Uint64
	busy        atomic.Uint64
	active      atomic.Int64
}

// New returns a Manager over b with default capacity and workers.
func New(b engine.Binding) *Manager {
	return NewWithConfig(ManagerConfig{Binding: b})
}

func (m *Manager) setLastErr(err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}

// SetCapacity changes the open-context limit. Open contexts are kept.
func (m *Manager) SetCapacity(n int) { m.reg.SetCapacity(n) }

// Open creates a context on the worker lane. ctx only bounds the wait for a
// free worker; a native open that has started runs to completion.
func (m *Manager) Open(ctx context.Context, p engine.ContextParams) (llmctx.OpenInfo, error) {
	start := time.Now()
	m.log.Info().Str("model", p.ModelPath).Msg("open start")
	m.publisher.Publish(Event{Name: "open_start", Fields: map[string]any{"model": p.ModelPath}})

	var id int
	err := m.lane.Do(ctx, func() error {
		var err error
		id, err = m.reg.Open(p)
		return err
	})
	if err != nil {
		opensTotal.WithLabelValues(openResult(err)).Inc()
		m.setLastErr(err)
		m.log.Warn().Err(err).Str("model", p.ModelPath).Msg("open failed")
		m.publisher.Publish(Event{Name: "open_fail", Fields: map[string]any{"model": p.ModelPath, "error": err.Error()}})
		return llmctx.OpenInfo{}, err
	}
	c, err := m.reg.Get(id)
	if err != nil {
		return llmctx.OpenInfo{}, err
	}
	m.opens.Add(1)
	opensTotal.WithLabelValues("ok").Inc()
	contextsLive.Set(float64(m.reg.Len()))
	m.log.Info().Int("context_id", id).Str("model", p.ModelPath).Dur("dur", time.Since(start)).Msg("open ready")
	m.publisher.Publish(Event{Name: "open_ready", ContextID: id, Fields: map[string]any{"model": p.ModelPath, "ms": time.Since(start).Milliseconds()}})
	return c.Info(), nil
}

func openResult(err error) string {
	switch {
	case registry.IsCapacityExceeded(err):
		return "capacity"
	case llmctx.IsInvalidModel(err), llmctx.IsMissingParameter(err):
		return "invalid"
	default:
		return "error"
	}
}

// Close releases id. Unknown ids are ignored.
func (m *Manager) Close(id int) {
	m.reg.Close(id)
	contextsLive.Set(float64(m.reg.Len()))
	m.log.Info().Int("context_id", id).Msg("close")
	m.publisher.Publish(Event{Name: "close", ContextID: id})
}

// Attach makes l the listener of id. The previous listener, if any, stops
// receiving events.
func (m *Manager) Attach(id int, l llmctx.Listener) (llmctx.Subscription, error) {
	c, err := m.reg.Get(id)
	if err != nil {
		return 0, err
	}
	return c.Events().Attach(l), nil
}

// Detach removes the listener installed by sub, if it is still current.
func (m *Manager) Detach(id int, sub llmctx.Subscription) bool {
	c, err := m.reg.Get(id)
	if err != nil {
		return false
	}
	return c.Events().Detach(sub)
}

// Details returns the model description of id.
func (m *Manager) Details(id int) (engine.ModelDetails, error) {
	c, err := m.reg.Get(id)
	if err != nil {
		return engine.ModelDetails{}, err
	}
	return c.Details(), nil
}

// Shutdown releases every context.
func (m *Manager) Shutdown() {
	m.reg.CloseAll()
	contextsLive.Set(0)
	m.log.Info().Msg("shutdown complete")
}

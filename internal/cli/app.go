package cli

import (
	"fmt"

	"llamactx/internal/config"
	"llamactx/internal/engine"
	"llamactx/internal/journal"
	"llamactx/internal/manager"
	"llamactx/internal/registry"
	"llamactx/internal/session"
	"llamactx/pkg/types"
)

// app wires one manager, its journal and a session for a single command run.
type app struct {
	cfg     config.Config
	journal *journal.Journal
	mgr     *manager.Manager
	sess    *session.Session
}

func newApp(opts *RootOptions) (*app, error) {
	a := &app{cfg: opts.cfg}
	mc := manager.ManagerConfig{
		Binding:  newBinding(),
		Capacity: opts.cfg.Capacity,
		Workers:  opts.cfg.Workers,
		Logger:   &opts.log,
	}
	if opts.cfg.JournalPath != "" {
		j, err := journal.Open(opts.cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		mc.Journal = j
	}
	a.mgr = manager.NewWithConfig(mc)
	a.sess = session.New(a.mgr, session.WithDefaults(opts.cfg.Completion))
	return a, nil
}

// contextParams returns the configured context options for model, with
// contextLength overriding the configured length when positive.
func (a *app) contextParams(model string, contextLength int) engine.ContextParams {
	p := a.cfg.Context
	p.ModelPath = model
	if contextLength > 0 {
		p.ContextLength = contextLength
	}
	return p
}

func (a *app) close() {
	_ = a.sess.Release()
	a.mgr.Shutdown()
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// app serves the admin endpoint.

func (a *app) Status() types.StatusResponse { return a.mgr.Status() }

func (a *app) Ready() bool { return a.mgr.Ready() }

func (a *app) ListModels() ([]types.Model, error) { return registry.LoadDir(a.cfg.ModelsDir) }

func (a *app) History(limit int) ([]types.HistoryEntry, error) {
	if a.journal == nil {
		return nil, nil
	}
	return a.journal.Completions(limit)
}

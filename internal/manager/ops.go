package manager

import (
	"context"
	"time"

	"llamactx/internal/engine"
	"llamactx/internal/journal"
	"llamactx/internal/llmctx"
)

// withContext resolves id and runs fn with it on the lane.
func (m *Manager) withContext(ctx context.Context, id int, fn func(*llmctx.Context) error) error {
	c, err := m.reg.Get(id)
	if err != nil {
		return err
	}
	return m.lane.Do(ctx, func() error { return fn(c) })
}

func (m *Manager) Tokenize(ctx context.Context, id int, text string) ([]int, error) {
	var toks []int
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		var err error
		toks, err = c.Tokenize(text)
		return err
	})
	return toks, err
}

func (m *Manager) Detokenize(ctx context.Context, id int, tokens []int) (string, error) {
	var s string
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		var err error
		s, err = c.Detokenize(tokens)
		return err
	})
	return s, err
}

func (m *Manager) Embed(ctx context.Context, id int, text string) ([]float32, error) {
	var v []float32
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		var err error
		v, err = c.Embed(text)
		return err
	})
	return v, err
}

func (m *Manager) FormatChat(ctx context.Context, id int, msgs []engine.ChatMessage, template string) (string, error) {
	var s string
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		var err error
		s, err = c.FormatChat(msgs, template)
		return err
	})
	return s, err
}

func (m *Manager) Bench(ctx context.Context, id int, pp, tg, pl, nr int) (string, error) {
	var s string
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		var err error
		s, err = c.Bench(pp, tg, pl, nr)
		return err
	})
	return s, err
}

// PersistState saves session state of id to path and journals the snapshot.
func (m *Manager) PersistState(ctx context.Context, id int, path string, size int) (int, error) {
	var (
		n     int
		model string
	)
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		model = c.Params().ModelPath
		var err error
		n, err = c.PersistState(path, size)
		return err
	})
	if err != nil {
		return 0, err
	}
	m.publisher.Publish(Event{Name: "state_persist", ContextID: id, Fields: map[string]any{"path": path, "tokens": n}})
	m.recordState(journal.StateRecord{ContextID: id, Model: model, Op: journal.OpPersist, Path: path, Tokens: n})
	return n, nil
}

// RestoreState loads session state from path into id.
func (m *Manager) RestoreState(ctx context.Context, id int, path string) (engine.StateInfo, error) {
	var (
		info  engine.StateInfo
		model string
	)
	err := m.withContext(ctx, id, func(c *llmctx.Context) error {
		model = c.Params().ModelPath
		var err error
		info, err = c.RestoreState(path)
		return err
	})
	if err != nil {
		return engine.StateInfo{}, err
	}
	m.publisher.Publish(Event{Name: "state_restore", ContextID: id, Fields: map[string]any{"path": path, "tokens": info.TokensLoaded}})
	m.recordState(journal.StateRecord{ContextID: id, Model: model, Op: journal.OpRestore, Path: path, Tokens: info.TokensLoaded})
	return info, nil
}

func (m *Manager) recordState(rec journal.StateRecord) {
	if m.journal == nil {
		return
	}
	rec.CreatedAt = time.Now()
	if err := m.journal.RecordState(rec); err != nil {
		m.log.Warn().Err(err).Int("context_id", rec.ContextID).Msg("journal write failed")
	}
}

package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"llamactx/internal/engine"
	"llamactx/internal/journal"
	"llamactx/internal/llmctx"
)

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (m *Manager) rejectBusy(id int) error {
	m.busy.Add(1)
	busyRejections.Inc()
	m.log.Debug().Int("context_id", id).Msg("generation rejected: busy")
	m.publisher.Publish(Event{Name: "generation_busy", ContextID: id})
	return llmctx.ErrBusy(id)
}

// Complete runs one generation on id. When l is non-nil it becomes the
// context's listener first; otherwise whichever listener is attached receives
// the events. Exactly one completion notice reaches the listener after its
// last fragment, whatever the outcome, and the listener is detached.
//
// Cancelling ctx stops the generation cooperatively; the partial result is
// returned with StoppedEarly set.
func (m *Manager) Complete(ctx context.Context, id int, p engine.CompletionParams, l llmctx.Listener) (engine.CompletionResult, error) {
	c, err := m.reg.Get(id)
	if err != nil {
		return engine.CompletionResult{}, err
	}
	if c.IsGenerating() {
		return engine.CompletionResult{}, m.rejectBusy(id)
	}
	r, err := c.Reserve()
	if err != nil {
		if llmctx.IsBusy(err) {
			return engine.CompletionResult{}, m.rejectBusy(id)
		}
		return engine.CompletionResult{}, err
	}
	if l != nil {
		c.Events().Attach(l)
	}

	reqID := newRequestID()
	log := m.log.With().Int("context_id", id).Str("request_id", reqID).Logger()
	log.Debug().Bool("stream", p.Stream).Msg("generation start")
	m.publisher.Publish(Event{Name: "generation_start", ContextID: id, Fields: map[string]any{"request_id": reqID, "stream": p.Stream}})
	m.active.Add(1)
	generationsActive.Inc()
	start := time.Now()

	var (
		res    engine.CompletionResult
		runErr error
	)
	done := make(chan struct{})
	if err := m.lane.Go(ctx, func() {
		defer close(done)
		res, runErr = r.Run(p)
	}); err != nil {
		runErr = err
	} else {
		select {
		case <-done:
		case <-ctx.Done():
			c.Stop()
			<-done
		}
	}
	dur := time.Since(start)

	r.Finish(llmctx.Completion{ContextID: id, RequestID: reqID, Result: res, Err: runErr})

	m.active.Add(-1)
	generationsActive.Dec()
	m.generations.Add(1)
	outcome := "ok"
	switch {
	case runErr != nil:
		outcome = "error"
		m.setLastErr(runErr)
	case res.StoppedEarly:
		outcome = "stopped"
	}
	generationsTotal.WithLabelValues(outcome).Inc()
	generationDuration.Observe(dur.Seconds())
	if p.Stream {
		fragmentsTotal.Add(float64(res.TokensPredicted))
	}

	ev := log.Info()
	if runErr != nil {
		ev = log.Warn().Err(runErr)
	}
	ev.Str("outcome", outcome).Int("tokens_predicted", res.TokensPredicted).Dur("dur", dur).Msg("generation done")
	m.publisher.Publish(Event{Name: "generation_done", ContextID: id, Fields: map[string]any{
		"request_id": reqID,
		"outcome":    outcome,
		"tokens":     res.TokensPredicted,
		"ms":         dur.Milliseconds(),
	}})

	if m.journal != nil {
		rec := journal.CompletionRecord{
			RequestID: reqID,
			ContextID: id,
			Model:     c.Params().ModelPath,
			Prompt:    p.Prompt,
			Result:    res,
			Duration:  dur,
			CreatedAt: start,
		}
		if runErr != nil {
			rec.Err = runErr.Error()
		}
		if err := m.journal.RecordCompletion(rec); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}
	return res, runErr
}

// Stop asks the in-flight generation of id to end early. It is a no-op when
// the context is idle.
func (m *Manager) Stop(id int) error {
	c, err := m.reg.Get(id)
	if err != nil {
		return err
	}
	if c.IsGenerating() {
		c.Stop()
		m.publisher.Publish(Event{Name: "stop", ContextID: id})
	}
	return nil
}

package llmctx

import (
	"errors"
	"sync/atomic"
	"time"

	"llamactx/internal/engine"
)

var errReservationSpent = errors.New("generation reservation already used")

const (
	reservationHeld int32 = iota
	reservationRan
	reservationDone
)

// Reservation holds the generation slot of a Context between the busy check
// and the completion notice. Run may be called at most once, and exactly one
// of Finish or Cancel gives the slot back.
type Reservation struct {
	c     *Context
	state atomic.Int32
}

// Reserve claims the generation slot without blocking.
func (c *Context) Reserve() (*Reservation, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	select {
	case c.genCh <- struct{}{}:
	default:
		c.leave()
		return nil, ErrBusy(c.id)
	}
	c.stopReq.Store(false)
	return &Reservation{c: c}, nil
}

// Context returns the context the slot belongs to.
func (r *Reservation) Context() *Context { return r.c }

func (r *Reservation) release() {
	<-r.c.genCh
	r.c.leave()
}

// Cancel gives the slot back without notifying the listener.
func (r *Reservation) Cancel() {
	if r.state.Swap(reservationDone) != reservationDone {
		r.release()
	}
}

// Finish hands n to the listener holding the slot, then gives the slot back.
// Release of the context waits for it, so the notice is never lost to a
// concurrent close. It reports whether a listener received the notice.
func (r *Reservation) Finish(n Completion) bool {
	if r.state.Swap(reservationDone) == reservationDone {
		return false
	}
	defer r.release()
	return r.c.events.Finish(n)
}

// Run performs the generation. The slot stays held until Finish or Cancel.
// A stop observed by the engine yields a partial result with StoppedEarly
// set, not an error.
func (r *Reservation) Run(p engine.CompletionParams) (engine.CompletionResult, error) {
	if !r.state.CompareAndSwap(reservationHeld, reservationRan) {
		return engine.CompletionResult{}, errReservationSpent
	}
	c := r.c
	if p.Prompt == "" {
		return engine.CompletionResult{}, ErrMissingParameter("prompt")
	}
	if err := p.Validate(); err != nil {
		return engine.CompletionResult{}, err
	}
	var onFragment func(engine.Fragment)
	if p.Stream {
		onFragment = c.events.emit
	}
	ctx, ok := c.beginRun()
	if !ok {
		return engine.CompletionResult{StoppedEarly: true}, nil
	}
	start := time.Now()
	res, err := c.binding.Generate(ctx, c.handle, p, onFragment)
	c.endRun()
	if err != nil {
		c.log.Warn().Err(err).Msg("generation failed")
		return engine.CompletionResult{}, &EngineError{Op: "generate", Err: err}
	}
	c.log.Debug().
		Int("tokens_predicted", res.TokensPredicted).
		Bool("stopped_early", res.StoppedEarly).
		Dur("dur", time.Since(start)).
		Msg("generation finished")
	return res, nil
}

// Generate reserves the slot, runs p and delivers the completion notice to
// the attached listener. It fails with a busy error when another generation
// is in flight.
func (c *Context) Generate(p engine.CompletionParams) (engine.CompletionResult, error) {
	r, err := c.Reserve()
	if err != nil {
		return engine.CompletionResult{}, err
	}
	res, err := r.Run(p)
	r.Finish(Completion{ContextID: c.id, Result: res, Err: err})
	return res, err
}

// Package llmctx owns one native model context: its handle, its single
// generation slot and the listener that receives streamed fragments.
package llmctx

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llamactx/internal/engine"
)

// State is the generation state of a Context.
type State int32

const (
	StateIdle State = iota
	StateGenerating
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// noGPUReason is reported for every context; layers are never offloaded.
const noGPUReason = "GPU offload is not supported by this build; gpu_layers is ignored"

// OpenInfo summarises a successful open.
type OpenInfo struct {
	ContextID   int                 `json:"context_id"`
	GPU         bool                `json:"gpu"`
	ReasonNoGPU string              `json:"reason_no_gpu"`
	Model       engine.ModelDetails `json:"model"`
}

// Context is a live model context. All methods are safe for concurrent use.
type Context struct {
	id      int
	binding engine.Binding
	handle  engine.Handle
	params  engine.ContextParams
	details engine.ModelDetails
	opened  time.Time
	log     zerolog.Logger

	mu       sync.Mutex
	released bool
	inflight sync.WaitGroup

	genCh   chan struct{}
	stopReq atomic.Bool
	events  EventSink

	// runMu orders stop requests against the engine call. cancelRun is set
	// only while Generate is pending.
	runMu     sync.Mutex
	cancelRun context.CancelFunc
}

// Option configures a Context at Open.
type Option func(*Context)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Context) { c.log = l }
}

// Open validates p, checks the model signature and opens a native context.
// Validation failures never reach the engine.
func Open(b engine.Binding, id int, p engine.ContextParams, opts ...Option) (*Context, error) {
	if strings.TrimSpace(p.ModelPath) == "" {
		return nil, ErrMissingParameter("model")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := engine.CheckMagic(p.ModelPath); err != nil {
		return nil, ErrInvalidModel(p.ModelPath, err)
	}
	p = p.Normalize()
	h, err := b.Open(p.ModelPath, p)
	if err != nil {
		return nil, &EngineError{Op: "open", Err: err}
	}
	d, err := b.ModelInfo(h)
	if err != nil {
		b.Free(h)
		return nil, &EngineError{Op: "modelInfo", Err: err}
	}
	c := &Context{
		id:      id,
		binding: b,
		handle:  h,
		params:  p,
		details: d,
		opened:  time.Now(),
		log:     zerolog.Nop(),
		genCh:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Int("context_id", id).Logger()
	c.log.Info().Str("model", p.ModelPath).Int("n_ctx", p.ContextLength).Msg("context opened")
	return c, nil
}

func (c *Context) ID() int { return c.id }

// Details returns a copy of the model description captured at open.
func (c *Context) Details() engine.ModelDetails { return c.details.Clone() }

func (c *Context) Params() engine.ContextParams { return c.params }

func (c *Context) OpenedAt() time.Time { return c.opened }

// Info reports the open summary. GPU offload is never active.
func (c *Context) Info() OpenInfo {
	return OpenInfo{ContextID: c.id, GPU: false, ReasonNoGPU: noGPUReason, Model: c.Details()}
}

// Events exposes the listener slot.
func (c *Context) Events() *EventSink { return &c.events }

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return StateReleased
	}
	if len(c.genCh) > 0 {
		return StateGenerating
	}
	return StateIdle
}

// IsGenerating is the optimistic busy check; Reserve is authoritative.
func (c *Context) IsGenerating() bool { return c.State() == StateGenerating }

// enter registers an in-flight native call. Release waits for all of them
// before freeing the handle.
func (c *Context) enter() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrReleased(c.id)
	}
	c.inflight.Add(1)
	return nil
}

func (c *Context) leave() { c.inflight.Done() }

// Stop requests the in-flight generation to end at the next token boundary.
// It is a no-op when the context is idle or released.
func (c *Context) Stop() {
	if c.enter() != nil {
		return
	}
	defer c.leave()
	if len(c.genCh) == 0 {
		return
	}
	c.requestStop()
	c.log.Debug().Msg("stop requested")
}

// requestStop flags the reserved generation and, when its Generate call is
// pending, cancels that call and tells the engine.
func (c *Context) requestStop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.stopReq.Store(true)
	if c.cancelRun != nil {
		c.cancelRun()
		c.binding.Stop(c.handle)
	}
}

// beginRun returns the context for one engine call. It fails when a stop
// arrived first, in which case the engine is not called.
func (c *Context) beginRun() (context.Context, bool) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.stopReq.Load() {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	return ctx, true
}

func (c *Context) endRun() {
	c.runMu.Lock()
	c.cancelRun()
	c.cancelRun = nil
	c.runMu.Unlock()
}

// Release stops any generation, waits for in-flight calls and frees the
// native handle. A reserved generation finishes first, so its listener still
// gets the completion notice. Calling it again has no effect.
func (c *Context) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	if len(c.genCh) > 0 {
		c.requestStop()
	}
	c.inflight.Wait()
	c.binding.Free(c.handle)
	c.events.Clear()
	c.log.Info().Dur("age", time.Since(c.opened)).Msg("context released")
}

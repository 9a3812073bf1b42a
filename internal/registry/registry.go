// Package registry maps context ids to live contexts under a capacity limit.
package registry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"llamactx/internal/engine"
	"llamactx/internal/llmctx"
)

// DefaultCapacity is the number of simultaneously open contexts allowed when
// none is configured.
const DefaultCapacity = 1

// Registry owns every live Context. The capacity check and the slot
// reservation happen under one lock; the slow native open runs outside it.
type Registry struct {
	binding engine.Binding
	log     zerolog.Logger
	nextID  atomic.Int64

	mu       sync.Mutex
	contexts map[int]*llmctx.Context
	pending  int
	capacity int
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New returns an empty registry. capacity <= 0 selects DefaultCapacity.
func New(b engine.Binding, capacity int, opts ...Option) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Registry{
		binding:  b,
		log:      zerolog.Nop(),
		contexts: make(map[int]*llmctx.Context),
		capacity: capacity,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetCapacity changes the limit for future opens. Lowering it never closes
// contexts that are already open.
func (r *Registry) SetCapacity(n int) {
	if n <= 0 {
		n = DefaultCapacity
	}
	r.mu.Lock()
	r.capacity = n
	r.mu.Unlock()
}

func (r *Registry) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capacity
}

func (r *Registry) reserve() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.contexts)+r.pending >= r.capacity {
		return 0, ErrCapacityExceeded(r.capacity)
	}
	r.pending++
	return int(r.nextID.Add(1)), nil
}

// Open creates a context and returns its id. A full registry fails with a
// capacity error immediately; callers are never queued.
func (r *Registry) Open(p engine.ContextParams) (int, error) {
	id, err := r.reserve()
	if err != nil {
		return 0, err
	}
	c, err := llmctx.Open(r.binding, id, p, llmctx.WithLogger(r.log))
	r.mu.Lock()
	r.pending--
	if err == nil {
		r.contexts[id] = c
	}
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get resolves id to its live context.
func (r *Registry) Get(id int) (*llmctx.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contexts[id]
	if !ok {
		return nil, ErrNotFound(id)
	}
	return c, nil
}

// Close releases and forgets id. Unknown ids are ignored.
func (r *Registry) Close(id int) {
	r.mu.Lock()
	c, ok := r.contexts[id]
	delete(r.contexts, id)
	r.mu.Unlock()
	if ok {
		c.Release()
	}
}

// CloseAll releases every live context.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*llmctx.Context, 0, len(r.contexts))
	for id, c := range r.contexts {
		all = append(all, c)
		delete(r.contexts, id)
	}
	r.mu.Unlock()
	var g errgroup.Group
	for _, c := range all {
		c := c
		g.Go(func() error {
			c.Release()
			return nil
		})
	}
	_ = g.Wait()
}

// IDs returns the live ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	ids := make([]int, 0, len(r.contexts))
	for id := range r.contexts {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Ints(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

package session

import (
	"sync"

	"llamactx/internal/engine"
	"llamactx/internal/llmctx"
)

// EventKind distinguishes stream events.
type EventKind int

const (
	EventFragment EventKind = iota
	EventDone
)

func (k EventKind) String() string {
	if k == EventDone {
		return "done"
	}
	return "fragment"
}

// Event is one item delivered on a Stream. Result and Err are set only on
// EventDone.
type Event struct {
	Kind      EventKind
	Fragment  engine.Fragment
	RequestID string
	Result    engine.CompletionResult
	Err       error
}

// Stream is a listener backed by an unbounded queue. Delivery never blocks
// the generation: events are queued and handed to Events by a pump goroutine
// in arrival order. Events is closed after the completion event, or when the
// stream is closed.
type Stream struct {
	events    chan Event
	done      chan struct{}
	wake      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	queue []Event
	ended bool
}

func newStream() *Stream {
	s := &Stream{
		events: make(chan Event),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	go s.pump()
	return s
}

// Events returns the channel of fragments followed by one EventDone.
func (s *Stream) Events() <-chan Event { return s.events }

// Done is closed when the stream is closed by its consumer or replaced by a
// newer stream.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close stops delivery. Pending and future events are discarded.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// push queues ev. Events after the completion event are dropped.
func (s *Stream) push(ev Event, last bool) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.ended = last
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stream) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		batch, ended := s.queue, s.ended
		s.queue = nil
		s.mu.Unlock()
		for _, ev := range batch {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
		if ended {
			return
		}
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) OnFragment(f engine.Fragment) {
	s.push(Event{Kind: EventFragment, Fragment: f}, false)
}

func (s *Stream) OnComplete(c llmctx.Completion) {
	s.push(Event{Kind: EventDone, RequestID: c.RequestID, Result: c.Result, Err: c.Err}, true)
}

var _ llmctx.Listener = (*Stream)(nil)

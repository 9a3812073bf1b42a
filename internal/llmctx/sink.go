package llmctx

import (
	"sync"

	"llamactx/internal/engine"
)

// Completion is the single terminal notice of a generation.
type Completion struct {
	ContextID int
	RequestID string
	Result    engine.CompletionResult
	Err       error
}

// Listener receives the events of a context's current generation.
// Methods are called synchronously on the generating goroutine.
type Listener interface {
	OnFragment(engine.Fragment)
	OnComplete(Completion)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Fragment func(engine.Fragment)
	Complete func(Completion)
}

func (l ListenerFuncs) OnFragment(f engine.Fragment) {
	if l.Fragment != nil {
		l.Fragment(f)
	}
}

func (l ListenerFuncs) OnComplete(c Completion) {
	if l.Complete != nil {
		l.Complete(c)
	}
}

// Subscription identifies one Attach call.
type Subscription uint64

// EventSink holds at most one listener. Attaching replaces the previous one.
type EventSink struct {
	mu  sync.Mutex
	l   Listener
	sub Subscription
	seq Subscription
}

// Attach makes l the current listener.
func (s *EventSink) Attach(l Listener) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.l = l
	s.sub = s.seq
	return s.sub
}

// Detach clears the slot only when sub is still the current subscription.
func (s *EventSink) Detach(sub Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l == nil || s.sub != sub {
		return false
	}
	s.l = nil
	return true
}

// Clear empties the slot unconditionally.
func (s *EventSink) Clear() {
	s.mu.Lock()
	s.l = nil
	s.mu.Unlock()
}

// Attached reports whether a listener currently holds the slot.
func (s *EventSink) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l != nil
}

func (s *EventSink) current() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l
}

// emit delivers f to the current listener, or drops it.
func (s *EventSink) emit(f engine.Fragment) {
	if l := s.current(); l != nil {
		l.OnFragment(f)
	}
}

// Finish empties the slot and hands c to the listener that held it.
// It reports whether a listener received the notice.
func (s *EventSink) Finish(c Completion) bool {
	s.mu.Lock()
	l := s.l
	s.l = nil
	s.mu.Unlock()
	if l == nil {
		return false
	}
	l.OnComplete(c)
	return true
}

package llmctx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"llamactx/internal/engine"
)

func TestEventSink_LastAttachWins(t *testing.T) {
	var s EventSink
	a, b := &recorder{}, &recorder{}
	subA := s.Attach(a)
	s.Attach(b)
	s.emit(engine.Fragment{Text: "x"})
	assert.Empty(t, a.fragments)
	assert.Equal(t, []string{"x"}, b.fragments)

	assert.False(t, s.Detach(subA), "stale subscription must not detach the new listener")
	assert.True(t, s.Attached())
}

func TestEventSink_FinishDeliversOnceAndDetaches(t *testing.T) {
	var s EventSink
	r := &recorder{}
	s.Attach(r)
	assert.True(t, s.Finish(Completion{ContextID: 3}))
	assert.False(t, s.Finish(Completion{ContextID: 3}))
	assert.Len(t, r.done, 1)
	assert.False(t, s.Attached())

	s.emit(engine.Fragment{Text: "dropped"})
	assert.Empty(t, r.fragments)
}

func TestEventSink_DetachCurrent(t *testing.T) {
	var s EventSink
	sub := s.Attach(ListenerFuncs{})
	assert.True(t, s.Detach(sub))
	assert.False(t, s.Detach(sub))
}

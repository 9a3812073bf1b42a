package cli

import (
	"context"
	"fmt"
	"io"

	"llamactx/internal/engine"
	"llamactx/internal/session"
)

// printStream copies fragment text from st to w until the stream ends or is
// closed. The returned channel is closed when copying stops.
func printStream(w io.Writer, st *session.Stream) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-st.Events():
				if !ok {
					return
				}
				if ev.Kind == session.EventFragment {
					fmt.Fprint(w, ev.Fragment.Text)
				}
			case <-st.Done():
				return
			}
		}
	}()
	return done
}

// complete runs p through the session, streaming to out when p.Stream is set.
func complete(ctx context.Context, sess *session.Session, p engine.CompletionParams, out io.Writer) (engine.CompletionResult, error) {
	if !p.Stream {
		return sess.SubmitWith(ctx, p)
	}
	st, err := sess.AttachListener()
	if err != nil {
		return engine.CompletionResult{}, err
	}
	printed := printStream(out, st)
	res, err := sess.SubmitWith(ctx, p)
	if err != nil {
		st.Close()
	}
	<-printed
	return res, err
}

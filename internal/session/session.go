// Package session is the application-facing facade: it owns at most one
// context id and forwards work to the manager.
package session

import (
	"context"
	"errors"
	"sync"

	"llamactx/internal/engine"
	"llamactx/internal/llmctx"
	"llamactx/internal/manager"
	"llamactx/internal/registry"
)

// ErrNotLoaded is returned when no model has been loaded into the session.
var ErrNotLoaded = errors.New("no model loaded")

// Session holds one context id and the stream attached to it.
type Session struct {
	m        *manager.Manager
	defaults engine.CompletionParams

	// loadMu serialises LoadModelWith so one context is owned at a time.
	loadMu sync.Mutex

	mu     sync.Mutex
	id     int
	loaded bool
	stream *Stream
}

// Option configures a Session.
type Option func(*Session)

// WithDefaults sets the completion parameters Submit starts from.
func WithDefaults(p engine.CompletionParams) Option {
	return func(s *Session) { s.defaults = p }
}

func New(m *manager.Manager, opts ...Option) *Session {
	s := &Session{m: m, defaults: engine.DefaultCompletionParams("")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) current() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0, ErrNotLoaded
	}
	return s.id, nil
}

// ContextID reports the owned id, if any.
func (s *Session) ContextID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.loaded
}

// LoadModel opens path with default options and the given context length
// (0 keeps the default).
func (s *Session) LoadModel(ctx context.Context, path string, contextLength int) (llmctx.OpenInfo, error) {
	p := engine.DefaultContextParams(path)
	if contextLength > 0 {
		p.ContextLength = contextLength
	}
	return s.LoadModelWith(ctx, p)
}

// LoadModelWith opens a context with p. A model already held by the session
// is released first. Concurrent loads run one after another.
func (s *Session) LoadModelWith(ctx context.Context, p engine.ContextParams) (llmctx.OpenInfo, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if err := s.Release(); err != nil {
		return llmctx.OpenInfo{}, err
	}
	info, err := s.m.Open(ctx, p)
	if err != nil {
		return llmctx.OpenInfo{}, err
	}
	s.mu.Lock()
	s.id = info.ContextID
	s.loaded = true
	s.mu.Unlock()
	return info, nil
}

// AttachListener installs a fresh Stream as the context's listener. A stream
// returned earlier is closed.
func (s *Session) AttachListener() (*Stream, error) {
	id, err := s.current()
	if err != nil {
		return nil, err
	}
	st := newStream()
	if _, err := s.m.Attach(id, st); err != nil {
		return nil, err
	}
	s.mu.Lock()
	prev := s.stream
	s.stream = st
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return st, nil
}

// Submit generates a completion for prompt. With streaming set, fragments go
// to the attached Stream as they are produced. It blocks until the
// generation finishes.
func (s *Session) Submit(ctx context.Context, prompt string, streaming bool) (engine.CompletionResult, error) {
	p := s.defaults.WithPrompt(prompt)
	p.Stream = streaming
	return s.SubmitWith(ctx, p)
}

// SubmitWith generates a completion with explicit parameters.
func (s *Session) SubmitWith(ctx context.Context, p engine.CompletionParams) (engine.CompletionResult, error) {
	id, err := s.current()
	if err != nil {
		return engine.CompletionResult{}, err
	}
	return s.m.Complete(ctx, id, p, nil)
}

// Abort stops the in-flight generation. It is safe when idle or unloaded.
func (s *Session) Abort() error {
	id, err := s.current()
	if err != nil {
		return nil
	}
	if err := s.m.Stop(id); err != nil && !registry.IsNotFound(err) {
		return err
	}
	return nil
}

// Release closes the owned context and forgets its id.
func (s *Session) Release() error {
	s.mu.Lock()
	id, loaded, st := s.id, s.loaded, s.stream
	s.id, s.loaded, s.stream = 0, false, nil
	s.mu.Unlock()
	if st != nil {
		st.Close()
	}
	if loaded {
		s.m.Close(id)
	}
	return nil
}

func (s *Session) Tokenize(ctx context.Context, text string) ([]int, error) {
	id, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.m.Tokenize(ctx, id, text)
}

func (s *Session) Detokenize(ctx context.Context, tokens []int) (string, error) {
	id, err := s.current()
	if err != nil {
		return "", err
	}
	return s.m.Detokenize(ctx, id, tokens)
}

func (s *Session) Embed(ctx context.Context, text string) ([]float32, error) {
	id, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.m.Embed(ctx, id, text)
}

func (s *Session) FormatChat(ctx context.Context, msgs []engine.ChatMessage, template string) (string, error) {
	id, err := s.current()
	if err != nil {
		return "", err
	}
	return s.m.FormatChat(ctx, id, msgs, template)
}

func (s *Session) Bench(ctx context.Context, pp, tg, pl, nr int) (string, error) {
	id, err := s.current()
	if err != nil {
		return "", err
	}
	return s.m.Bench(ctx, id, pp, tg, pl, nr)
}

// SaveState persists up to size tokens of session state (0 for all).
func (s *Session) SaveState(ctx context.Context, path string, size int) (int, error) {
	id, err := s.current()
	if err != nil {
		return 0, err
	}
	return s.m.PersistState(ctx, id, path, size)
}

func (s *Session) LoadState(ctx context.Context, path string) (engine.StateInfo, error) {
	id, err := s.current()
	if err != nil {
		return engine.StateInfo{}, err
	}
	return s.m.RestoreState(ctx, id, path)
}

func (s *Session) Details() (engine.ModelDetails, error) {
	id, err := s.current()
	if err != nil {
		return engine.ModelDetails{}, err
	}
	return s.m.Details(id)
}

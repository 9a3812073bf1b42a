package llmctx

import (
	"path/filepath"
	"strings"

	"llamactx/internal/common/fsutil"
	"llamactx/internal/engine"
)

func (c *Context) Tokenize(text string) ([]int, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()
	toks, err := c.binding.Tokenize(c.handle, text)
	if err != nil {
		return nil, &EngineError{Op: "tokenize", Err: err}
	}
	return toks, nil
}

func (c *Context) Detokenize(tokens []int) (string, error) {
	if err := c.enter(); err != nil {
		return "", err
	}
	defer c.leave()
	s, err := c.binding.Detokenize(c.handle, tokens)
	if err != nil {
		return "", &EngineError{Op: "detokenize", Err: err}
	}
	return s, nil
}

// Embed requires the context to have been opened with Embedding set.
func (c *Context) Embed(text string) ([]float32, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	defer c.leave()
	if !c.params.Embedding {
		return nil, ErrEmbeddingDisabled(c.id)
	}
	v, err := c.binding.Embed(c.handle, text)
	if err != nil {
		return nil, &EngineError{Op: "embed", Err: err}
	}
	return v, nil
}

func (c *Context) FormatChat(messages []engine.ChatMessage, template string) (string, error) {
	if len(messages) == 0 {
		return "", ErrMissingParameter("messages")
	}
	if err := c.enter(); err != nil {
		return "", err
	}
	defer c.leave()
	s, err := c.binding.FormatChat(c.handle, messages, template)
	if err != nil {
		return "", &EngineError{Op: "formatChat", Err: err}
	}
	return s, nil
}

// Bench runs the engine micro-benchmark: pp prompt tokens, tg generated
// tokens, pl parallel sequences, nr repetitions.
func (c *Context) Bench(pp, tg, pl, nr int) (string, error) {
	if err := c.enter(); err != nil {
		return "", err
	}
	defer c.leave()
	s, err := c.binding.Bench(c.handle, pp, tg, pl, nr)
	if err != nil {
		return "", &EngineError{Op: "bench", Err: err}
	}
	return s, nil
}

// PersistState saves up to size tokens of session state (0 for all) and
// returns the number saved.
func (c *Context) PersistState(path string, size int) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, ErrInvalidPath(path, "empty path")
	}
	if !fsutil.IsDir(filepath.Dir(path)) {
		return 0, ErrInvalidPath(path, "parent directory does not exist")
	}
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()
	n, err := c.binding.Persist(c.handle, path, size)
	if err != nil {
		return 0, &EngineError{Op: "persist", Err: err}
	}
	if n < 0 {
		return 0, &EngineError{Op: "persist", Err: errPersistFailed}
	}
	c.log.Info().Str("path", path).Int("tokens", n).Msg("state persisted")
	return n, nil
}

func (c *Context) RestoreState(path string) (engine.StateInfo, error) {
	if strings.TrimSpace(path) == "" {
		return engine.StateInfo{}, ErrInvalidPath(path, "empty path")
	}
	if !fsutil.IsFile(path) {
		return engine.StateInfo{}, ErrInvalidPath(path, "file does not exist")
	}
	if err := c.enter(); err != nil {
		return engine.StateInfo{}, err
	}
	defer c.leave()
	info, err := c.binding.Restore(c.handle, path)
	if err != nil {
		return engine.StateInfo{}, &EngineError{Op: "restore", Err: err}
	}
	c.log.Info().Str("path", path).Int("tokens", info.TokensLoaded).Msg("state restored")
	return info, nil
}

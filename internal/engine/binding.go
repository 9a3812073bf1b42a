// Package engine defines the boundary between llamactx and a native inference
// engine. A Binding owns no state of its own that callers may observe: every
// operation is addressed by the opaque Handle returned from Open.
package engine

import "context"

// Handle identifies one native model+context pair. The zero Handle is never
// returned by a successful Open.
type Handle uint64

// Binding is the thin adapter over the native engine. All methods except Stop
// and IsGenerating may block for a long time and must not be called from a
// latency-sensitive goroutine.
type Binding interface {
	// Open loads the model at path with the given options.
	Open(path string, p ContextParams) (Handle, error)
	// ModelInfo describes the model behind h.
	ModelInfo(h Handle) (ModelDetails, error)
	// FormatChat renders messages with the model's chat template, or with
	// template when it is non-empty.
	FormatChat(h Handle, messages []ChatMessage, template string) (string, error)
	// Generate runs a completion. onFragment is invoked synchronously on the
	// calling goroutine for every emitted piece of text when p.Stream is set.
	// Implementations return at the next token boundary once ctx is done,
	// with StoppedEarly set.
	Generate(ctx context.Context, h Handle, p CompletionParams, onFragment func(Fragment)) (CompletionResult, error)
	// Stop asks a running Generate on h to return at the next token boundary.
	// It has no effect on a later call.
	Stop(h Handle)
	IsGenerating(h Handle) bool
	Tokenize(h Handle, text string) ([]int, error)
	Detokenize(h Handle, tokens []int) (string, error)
	Embed(h Handle, text string) ([]float32, error)
	// Persist writes at most size tokens of session state to path (0 means
	// all) and returns the number of tokens saved.
	Persist(h Handle, path string, size int) (int, error)
	Restore(h Handle, path string) (StateInfo, error)
	Bench(h Handle, pp, tg, pl, nr int) (string, error)
	// Free releases h. Using h afterwards is undefined.
	Free(h Handle)
}

// ChatMessage is one turn passed to FormatChat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenProb is one candidate of a per-token probability report.
type TokenProb struct {
	Text string  `json:"tok_str"`
	Prob float32 `json:"prob"`
}

// Fragment is a piece of generated text as it is produced.
type Fragment struct {
	Text  string      `json:"token"`
	Probs []TokenProb `json:"completion_probabilities,omitempty"`
}

//go:build !llama

package engine

import "context"

// LlamaBuilt reports whether this binary links the native llama.cpp engine.
const LlamaBuilt = false

const notBuilt = "llama support not built (missing 'llama' build tag)"

// llamaBinding refuses every native call. Default builds stay CGO-free.
type llamaBinding struct{}

// NewLlamaBinding returns the llama.cpp binding; in this build it is a stub.
func NewLlamaBinding() Binding { return llamaBinding{} }

func (llamaBinding) Open(string, ContextParams) (Handle, error) {
	return 0, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) ModelInfo(Handle) (ModelDetails, error) {
	return ModelDetails{}, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) FormatChat(Handle, []ChatMessage, string) (string, error) {
	return "", ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Generate(context.Context, Handle, CompletionParams, func(Fragment)) (CompletionResult, error) {
	return CompletionResult{}, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Stop(Handle) {}

func (llamaBinding) IsGenerating(Handle) bool { return false }

func (llamaBinding) Tokenize(Handle, string) ([]int, error) {
	return nil, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Detokenize(Handle, []int) (string, error) {
	return "", ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Embed(Handle, string) ([]float32, error) {
	return nil, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Persist(Handle, string, int) (int, error) {
	return -1, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Restore(Handle, string) (StateInfo, error) {
	return StateInfo{}, ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Bench(Handle, int, int, int, int) (string, error) {
	return "", ErrDependencyUnavailable(notBuilt)
}

func (llamaBinding) Free(Handle) {}

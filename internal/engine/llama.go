//go:build llama

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog/log"
)

// LlamaBuilt reports whether this binary links the native llama.cpp engine.
const LlamaBuilt = true

// llamaBinding drives go-llama.cpp. Each Handle maps to one loaded model.
type llamaBinding struct {
	mu     sync.Mutex
	next   Handle
	models map[Handle]*llamaModel
}

type llamaModel struct {
	m          *llama.LLama
	path       string
	params     ContextParams
	stop       atomic.Bool
	generating atomic.Bool
}

// NewLlamaBinding returns the in-process llama.cpp binding.
func NewLlamaBinding() Binding {
	return &llamaBinding{models: make(map[Handle]*llamaModel)}
}

func (b *llamaBinding) lookup(h Handle) (*llamaModel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lm, ok := b.models[h]
	if !ok {
		return nil, fmt.Errorf("llama: unknown handle %d", h)
	}
	return lm, nil
}

func (b *llamaBinding) Open(path string, p ContextParams) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(p.ContextLength),
		llama.SetNBatch(p.BatchSize),
		llama.SetMMap(p.UseMmap),
	}
	if p.UseMlock {
		mo = append(mo, llama.EnableMLock)
	}
	if p.Embedding {
		mo = append(mo, llama.EnableEmbeddings)
	}
	if p.LoraPath != "" {
		mo = append(mo, llama.SetLoraAdapter(p.LoraPath))
	}
	if p.RopeFreqBase > 0 {
		mo = append(mo, llama.SetRopeFreqBase(p.RopeFreqBase))
	}
	if p.RopeFreqScale > 0 {
		mo = append(mo, llama.SetRopeFreqScale(p.RopeFreqScale))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	b.next++
	h := b.next
	b.models[h] = &llamaModel{m: m, path: path, params: p}
	b.mu.Unlock()
	return h, nil
}

func (b *llamaBinding) ModelInfo(h Handle) (ModelDetails, error) {
	lm, err := b.lookup(h)
	if err != nil {
		return ModelDetails{}, err
	}
	d := ModelDetails{
		Path:        lm.path,
		Description: strings.TrimSuffix(filepath.Base(lm.path), filepath.Ext(lm.path)),
		NCtxTrain:   lm.params.ContextLength,
	}
	if st, err := os.Stat(lm.path); err == nil {
		d.SizeBytes = st.Size()
	}
	return d, nil
}

func (b *llamaBinding) FormatChat(Handle, []ChatMessage, string) (string, error) {
	return "", unsupportedError{op: "formatChat"}
}

func (b *llamaBinding) Generate(ctx context.Context, h Handle, p CompletionParams, onFragment func(Fragment)) (CompletionResult, error) {
	lm, err := b.lookup(h)
	if err != nil {
		return CompletionResult{}, err
	}
	if !lm.generating.CompareAndSwap(false, true) {
		return CompletionResult{}, errors.New("llama: generation already running")
	}
	defer lm.generating.Store(false)
	lm.stop.Store(false)

	var (
		predicted   int
		interrupted bool
		firstTok    time.Time
	)
	lm.m.SetTokenCallback(func(tok string) bool {
		if lm.stop.Load() || ctx.Err() != nil {
			interrupted = true
			return false
		}
		if predicted == 0 {
			firstTok = time.Now()
		}
		predicted++
		if p.Stream && onFragment != nil {
			onFragment(Fragment{Text: tok})
		}
		return true
	})
	defer lm.m.SetTokenCallback(nil)

	threads := p.Threads
	if threads <= 0 {
		threads = lm.params.Threads
	}
	po := predictOptions(p, threads)
	evaluated := 0
	if n, _, err := lm.m.TokenizeString(p.Prompt, po...); err == nil {
		evaluated = int(n)
	}
	start := time.Now()
	text, err := lm.m.Predict(p.Prompt, po...)
	end := time.Now()
	if err != nil && !interrupted {
		return CompletionResult{}, err
	}
	res := CompletionResult{
		Text:            text,
		TokensPredicted: predicted,
		TokensEvaluated: evaluated,
		StoppedEarly:    interrupted,
	}
	if p.MaxTokens > 0 && predicted >= p.MaxTokens {
		res.StoppedLimit = true
	}
	for _, w := range p.Stop {
		if w != "" && strings.HasSuffix(strings.TrimRight(text, " \n"), w) {
			res.StoppedWord = true
			res.StoppingWord = w
			break
		}
	}
	if !res.StoppedLimit && !res.StoppedWord && !interrupted {
		res.StoppedEOS = true
	}
	if firstTok.IsZero() {
		firstTok = end
	}
	res.Timings = Timings{
		PromptN:     evaluated,
		PromptMS:    float64(firstTok.Sub(start).Microseconds()) / 1e3,
		PredictedN:  predicted,
		PredictedMS: float64(end.Sub(firstTok).Microseconds()) / 1e3,
	}
	return res, nil
}

func predictOptions(p CompletionParams, threads int) []llama.PredictOption {
	tokens := p.MaxTokens
	if tokens < 0 {
		tokens = 0
	}
	po := []llama.PredictOption{
		llama.SetTokens(tokens),
		llama.SetThreads(max(1, threads)),
		llama.SetTopK(p.TopK),
		llama.SetTopP(p.TopP),
		llama.SetTemperature(p.Temperature),
		llama.SetPenalty(p.RepeatPenalty),
		llama.SetRepeat(p.RepeatLastN),
		llama.SetSeed(p.Seed),
		llama.SetFrequencyPenalty(p.FrequencyPenalty),
		llama.SetPresencePenalty(p.PresencePenalty),
		llama.SetTailFreeSamplingZ(p.TFSZ),
		llama.SetTypicalP(p.TypicalP),
		llama.SetPenalizeNL(p.PenalizeNewline),
	}
	if p.Mirostat > 0 {
		po = append(po,
			llama.SetMirostat(int(p.Mirostat)),
			llama.SetMirostatTAU(p.MirostatTau),
			llama.SetMirostatETA(p.MirostatEta),
		)
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	if p.IgnoreEOS {
		po = append(po, llama.IgnoreEOS)
	}
	if p.Grammar != "" {
		po = append(po, llama.WithGrammar(p.Grammar))
	}
	if len(p.LogitBias) > 0 {
		po = append(po, llama.SetLogitBias(llamaLogitBias(p.LogitBias[0])))
	}
	if ignored := llamaIgnoredOptions(p); len(ignored) > 0 {
		log.Warn().Strs("options", ignored).Msg("sampling options not supported by the llama.cpp binding are ignored")
	}
	return po
}

func (b *llamaBinding) Stop(h Handle) {
	if lm, err := b.lookup(h); err == nil {
		lm.stop.Store(true)
	}
}

func (b *llamaBinding) IsGenerating(h Handle) bool {
	lm, err := b.lookup(h)
	return err == nil && lm.generating.Load()
}

func (b *llamaBinding) Tokenize(h Handle, text string) ([]int, error) {
	lm, err := b.lookup(h)
	if err != nil {
		return nil, err
	}
	_, toks, err := lm.m.TokenizeString(text)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(toks))
	for i, t := range toks {
		out[i] = int(t)
	}
	return out, nil
}

func (b *llamaBinding) Detokenize(Handle, []int) (string, error) {
	return "", unsupportedError{op: "detokenize"}
}

func (b *llamaBinding) Embed(h Handle, text string) ([]float32, error) {
	lm, err := b.lookup(h)
	if err != nil {
		return nil, err
	}
	return lm.m.Embeddings(text)
}

func (b *llamaBinding) Persist(h Handle, path string, _ int) (int, error) {
	lm, err := b.lookup(h)
	if err != nil {
		return -1, err
	}
	if err := lm.m.SaveState(path); err != nil {
		return -1, err
	}
	return 0, nil
}

func (b *llamaBinding) Restore(h Handle, path string) (StateInfo, error) {
	lm, err := b.lookup(h)
	if err != nil {
		return StateInfo{}, err
	}
	if err := lm.m.LoadState(path); err != nil {
		return StateInfo{}, err
	}
	return StateInfo{}, nil
}

func (b *llamaBinding) Bench(Handle, int, int, int, int) (string, error) {
	return "", unsupportedError{op: "bench"}
}

func (b *llamaBinding) Free(h Handle) {
	b.mu.Lock()
	lm, ok := b.models[h]
	delete(b.models, h)
	b.mu.Unlock()
	if ok && lm.m != nil {
		lm.m.Free()
	}
}

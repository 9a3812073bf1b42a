// Package enginetest provides an in-memory engine.Binding that records every
// call. It emits scripted fragments and can park a generation mid-stream so
// tests can observe concurrent behaviour deterministically.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"llamactx/internal/engine"
)

const stateHeader = "FAKESTATE\n"

// Fake is a scripted engine.Binding. Configure exported fields before the
// first call; they are read without synchronisation.
type Fake struct {
	Fragments   []string
	Details     engine.ModelDetails
	OpenErr     error
	GenerateErr error
	OpenDelay   time.Duration

	mu     sync.Mutex
	next   engine.Handle
	live   map[engine.Handle]*fakeHandle
	freed  map[engine.Handle]bool
	calls  map[string]int
	misuse int
	hold   *hold
}

type fakeHandle struct {
	path       string
	params     engine.ContextParams
	generating bool
	stopCh     chan struct{}
	lastPrompt string
}

type hold struct {
	after   int
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

// New returns a Fake that emits fragments on every Generate.
func New(fragments ...string) *Fake {
	return &Fake{
		Fragments: fragments,
		Details: engine.ModelDetails{
			Description:  "fake 7B Q4_0",
			SizeBytes:    4 << 20,
			NParams:      7_000_000_000,
			NVocab:       256,
			NCtxTrain:    4096,
			ChatTemplate: true,
			Metadata:     map[string]string{"general.architecture": "fake"},
		},
		live:  make(map[engine.Handle]*fakeHandle),
		freed: make(map[engine.Handle]bool),
		calls: make(map[string]int),
	}
}

// HoldAfter makes subsequent generations pause after emitting n fragments.
// reached is closed when a generation parks; it stays parked until release is
// called or Stop is issued for its handle.
func (f *Fake) HoldAfter(n int) (reached <-chan struct{}, release func()) {
	h := &hold{after: n, reached: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.hold = h
	f.mu.Unlock()
	var once sync.Once
	return h.reached, func() { once.Do(func() { close(h.release) }) }
}

// Calls reports how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls reports the number of calls across all operations.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Live reports handles opened and not yet freed.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Misuse reports calls made with a freed or unknown handle.
func (f *Fake) Misuse() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.misuse
}

func (f *Fake) enter(op string, h engine.Handle) (*fakeHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	fh, ok := f.live[h]
	if !ok {
		f.misuse++
		if f.freed[h] {
			return nil, fmt.Errorf("%s: handle %d used after free", op, h)
		}
		return nil, fmt.Errorf("%s: unknown handle %d", op, h)
	}
	return fh, nil
}

func (f *Fake) Open(path string, p engine.ContextParams) (engine.Handle, error) {
	f.mu.Lock()
	f.calls["open"]++
	f.mu.Unlock()
	if f.OpenDelay > 0 {
		time.Sleep(f.OpenDelay)
	}
	if f.OpenErr != nil {
		return 0, f.OpenErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.live[f.next] = &fakeHandle{path: path, params: p}
	return f.next, nil
}

func (f *Fake) ModelInfo(h engine.Handle) (engine.ModelDetails, error) {
	fh, err := f.enter("modelInfo", h)
	if err != nil {
		return engine.ModelDetails{}, err
	}
	d := f.Details.Clone()
	d.Path = fh.path
	return d, nil
}

func (f *Fake) FormatChat(h engine.Handle, msgs []engine.ChatMessage, template string) (string, error) {
	if _, err := f.enter("formatChat", h); err != nil {
		return "", err
	}
	var b strings.Builder
	if template != "" {
		b.WriteString("[" + template + "]\n")
	}
	for _, m := range msgs {
		fmt.Fprintf(&b, "<|%s|>%s\n", m.Role, m.Content)
	}
	b.WriteString("<|assistant|>")
	return b.String(), nil
}

func (f *Fake) Generate(ctx context.Context, h engine.Handle, p engine.CompletionParams, onFragment func(engine.Fragment)) (engine.CompletionResult, error) {
	fh, err := f.enter("generate", h)
	if err != nil {
		return engine.CompletionResult{}, err
	}
	f.mu.Lock()
	if fh.generating {
		f.mu.Unlock()
		return engine.CompletionResult{}, errors.New("generate: already generating")
	}
	fh.generating = true
	fh.stopCh = make(chan struct{})
	fh.lastPrompt = p.Prompt
	stopCh := fh.stopCh
	hd := f.hold
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		fh.generating = false
		f.mu.Unlock()
	}()

	if f.GenerateErr != nil {
		return engine.CompletionResult{}, f.GenerateErr
	}
	start := time.Now()
	res := engine.CompletionResult{TokensEvaluated: len(p.Prompt)}
	var text strings.Builder
	stopped := func() bool {
		select {
		case <-stopCh:
			return true
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
	res.StoppedEarly = stopped()
emit:
	for i, frag := range f.Fragments {
		if res.StoppedEarly {
			break
		}
		if hd != nil && i == hd.after {
			hd.once.Do(func() { close(hd.reached) })
			select {
			case <-hd.release:
			case <-stopCh:
			case <-ctx.Done():
			}
		}
		if stopped() {
			res.StoppedEarly = true
			break
		}
		if p.MaxTokens > 0 && res.TokensPredicted >= p.MaxTokens {
			res.StoppedLimit = true
			break
		}
		for _, w := range p.Stop {
			if w != "" && strings.Contains(frag, w) {
				res.StoppedWord = true
				res.StoppingWord = w
				break emit
			}
		}
		res.TokensPredicted++
		text.WriteString(frag)
		if p.Stream && onFragment != nil {
			onFragment(engine.Fragment{Text: frag})
		}
	}
	if hd != nil && hd.after >= len(f.Fragments) && !res.StoppedEarly {
		hd.once.Do(func() { close(hd.reached) })
		select {
		case <-hd.release:
		case <-stopCh:
			res.StoppedEarly = true
		case <-ctx.Done():
			res.StoppedEarly = true
		}
	}
	if !res.StoppedEarly && !res.StoppedLimit && !res.StoppedWord {
		res.StoppedEOS = true
	}
	res.Text = text.String()
	elapsed := float64(time.Since(start).Microseconds()) / 1e3
	res.Timings = engine.Timings{
		PromptN:     res.TokensEvaluated,
		PredictedN:  res.TokensPredicted,
		PredictedMS: elapsed,
	}
	return res, nil
}

func (f *Fake) Stop(h engine.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["stop"]++
	if fh, ok := f.live[h]; ok && fh.generating {
		select {
		case <-fh.stopCh:
		default:
			close(fh.stopCh)
		}
	}
}

func (f *Fake) IsGenerating(h engine.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh, ok := f.live[h]
	return ok && fh.generating
}

// Tokenize maps every byte of text to one token, so Detokenize is lossless.
func (f *Fake) Tokenize(h engine.Handle, text string) ([]int, error) {
	if _, err := f.enter("tokenize", h); err != nil {
		return nil, err
	}
	out := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int(text[i])
	}
	return out, nil
}

func (f *Fake) Detokenize(h engine.Handle, tokens []int) (string, error) {
	if _, err := f.enter("detokenize", h); err != nil {
		return "", err
	}
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		if t < 0 || t > 255 {
			return "", fmt.Errorf("detokenize: token %d out of vocabulary", t)
		}
		b[i] = byte(t)
	}
	return string(b), nil
}

func (f *Fake) Embed(h engine.Handle, text string) ([]float32, error) {
	if _, err := f.enter("embed", h); err != nil {
		return nil, err
	}
	vec := make([]float32, 8)
	for i := 0; i < len(text); i++ {
		vec[i%len(vec)] += float32(text[i]) / 255
	}
	return vec, nil
}

func (f *Fake) Persist(h engine.Handle, path string, size int) (int, error) {
	fh, err := f.enter("persist", h)
	if err != nil {
		return -1, err
	}
	f.mu.Lock()
	prompt := fh.lastPrompt
	f.mu.Unlock()
	if size > 0 && size < len(prompt) {
		prompt = prompt[:size]
	}
	if err := os.WriteFile(path, []byte(stateHeader+prompt), 0o644); err != nil {
		return -1, err
	}
	return len(prompt), nil
}

func (f *Fake) Restore(h engine.Handle, path string) (engine.StateInfo, error) {
	fh, err := f.enter("restore", h)
	if err != nil {
		return engine.StateInfo{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return engine.StateInfo{}, err
	}
	s := string(b)
	if !strings.HasPrefix(s, stateHeader) {
		return engine.StateInfo{}, errors.New("restore: not a session file")
	}
	prompt := strings.TrimPrefix(s, stateHeader)
	f.mu.Lock()
	fh.lastPrompt = prompt
	f.mu.Unlock()
	return engine.StateInfo{TokensLoaded: len(prompt), Prompt: prompt}, nil
}

func (f *Fake) Bench(h engine.Handle, pp, tg, pl, nr int) (string, error) {
	if _, err := f.enter("bench", h); err != nil {
		return "", err
	}
	return fmt.Sprintf(`["%s",%d,%d,%d,%d]`, f.Details.Description, pp, tg, pl, nr), nil
}

func (f *Fake) Free(h engine.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["free"]++
	if _, ok := f.live[h]; !ok {
		f.misuse++
		return
	}
	delete(f.live, h)
	f.freed[h] = true
}

var _ engine.Binding = (*Fake)(nil)

package llmctx

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamactx/internal/engine"
	"llamactx/internal/engine/enginetest"
)

func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	data := append([]byte{0x47, 0x47, 0x55, 0x46}, make([]byte, 60)...)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func openFake(t *testing.T, f *enginetest.Fake, mut ...func(*engine.ContextParams)) *Context {
	t.Helper()
	p := engine.DefaultContextParams(createModelFile(t, t.TempDir(), "m.gguf"))
	for _, m := range mut {
		m(&p)
	}
	c, err := Open(f, 1, p)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c
}

type recorder struct {
	mu        sync.Mutex
	fragments []string
	done      []Completion
}

func (r *recorder) OnFragment(f engine.Fragment) {
	r.mu.Lock()
	r.fragments = append(r.fragments, f.Text)
	r.mu.Unlock()
}

func (r *recorder) OnComplete(c Completion) {
	r.mu.Lock()
	r.done = append(r.done, c)
	r.mu.Unlock()
}

func TestOpen_RejectsBadMagicWithoutNativeCalls(t *testing.T) {
	f := enginetest.New()
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.gguf")
	require.NoError(t, os.WriteFile(bad, []byte("GGML0000"), 0o644))

	_, err := Open(f, 1, engine.DefaultContextParams(bad))
	assert.True(t, IsInvalidModel(err), "got %v", err)

	_, err = Open(f, 1, engine.DefaultContextParams(filepath.Join(dir, "missing.gguf")))
	assert.True(t, IsInvalidModel(err), "got %v", err)

	_, err = Open(f, 1, engine.ContextParams{})
	assert.True(t, IsMissingParameter(err), "got %v", err)

	assert.Equal(t, 0, f.TotalCalls())
}

func TestOpen_EngineFailureKeepsMessage(t *testing.T) {
	f := enginetest.New()
	f.OpenErr = assert.AnError
	p := engine.DefaultContextParams(createModelFile(t, t.TempDir(), "m.gguf"))
	_, err := Open(f, 1, p)
	require.Error(t, err)
	assert.True(t, IsEngineFailure(err))
	assert.Contains(t, err.Error(), assert.AnError.Error())
	assert.Equal(t, 0, f.Live())
}

func TestOpen_NormalizesAndReportsNoGPU(t *testing.T) {
	f := enginetest.New()
	c := openFake(t, f, func(p *engine.ContextParams) {
		p.ContextLength = 0
		p.GPULayers = 99
	})
	assert.Equal(t, engine.DefaultContextLength, c.Params().ContextLength)
	info := c.Info()
	assert.False(t, info.GPU)
	assert.NotEmpty(t, info.ReasonNoGPU)
	assert.Equal(t, "fake 7B Q4_0", info.Model.Description)
	assert.Equal(t, StateIdle, c.State())
}

func TestDetailsIsACopy(t *testing.T) {
	c := openFake(t, enginetest.New())
	d := c.Details()
	d.Metadata["general.architecture"] = "mutated"
	assert.Equal(t, "fake", c.Details().Metadata["general.architecture"])
}

func TestGenerate_StreamsFragmentsInOrder(t *testing.T) {
	f := enginetest.New("He", "llo", " there")
	c := openFake(t, f)
	rec := &recorder{}
	c.Events().Attach(rec)

	p := engine.DefaultCompletionParams("Hi")
	p.Stream = true
	res, err := c.Generate(p)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", res.Text)
	assert.Equal(t, []string{"He", "llo", " there"}, rec.fragments)
	assert.Equal(t, StateIdle, c.State())
}

func TestGenerate_NoStreamEmitsNothing(t *testing.T) {
	c := openFake(t, enginetest.New("a", "b"))
	rec := &recorder{}
	c.Events().Attach(rec)
	res, err := c.Generate(engine.DefaultCompletionParams("x"))
	require.NoError(t, err)
	assert.Equal(t, "ab", res.Text)
	assert.Empty(t, rec.fragments)
}

func TestGenerate_MissingPrompt(t *testing.T) {
	f := enginetest.New("a")
	c := openFake(t, f)
	_, err := c.Generate(engine.DefaultCompletionParams(""))
	assert.True(t, IsMissingParameter(err))
	assert.Equal(t, 0, f.Calls("generate"))
	assert.Equal(t, StateIdle, c.State())
}

func TestGenerate_BusyWhileInFlight(t *testing.T) {
	f := enginetest.New("a", "b")
	c := openFake(t, f)
	reached, release := f.HoldAfter(1)

	done := make(chan error, 1)
	go func() {
		_, err := c.Generate(engine.DefaultCompletionParams("first"))
		done <- err
	}()
	<-reached
	assert.True(t, c.IsGenerating())

	_, err := c.Generate(engine.DefaultCompletionParams("second"))
	assert.True(t, IsBusy(err), "got %v", err)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.Calls("generate"))
}

func TestStop_ReturnsPartialResult(t *testing.T) {
	f := enginetest.New("one", "two", "three")
	c := openFake(t, f)
	reached, release := f.HoldAfter(2)
	defer release()

	type out struct {
		res engine.CompletionResult
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := c.Generate(engine.DefaultCompletionParams("count"))
		done <- out{res, err}
	}()
	<-reached
	c.Stop()
	o := <-done
	require.NoError(t, o.err)
	assert.True(t, o.res.StoppedEarly)
	assert.Equal(t, "onetwo", o.res.Text)
}

func TestStop_IdleIsNoop(t *testing.T) {
	f := enginetest.New()
	c := openFake(t, f)
	c.Stop()
	assert.Equal(t, 0, f.Calls("stop"))
	c.Release()
	c.Stop()
	assert.Equal(t, 0, f.Calls("stop"))
}

func TestReservation_CancelAndReuse(t *testing.T) {
	c := openFake(t, enginetest.New("z"))
	r, err := c.Reserve()
	require.NoError(t, err)
	assert.True(t, c.IsGenerating())
	r.Cancel()
	r.Cancel()
	assert.Equal(t, StateIdle, c.State())
	_, err = r.Run(engine.DefaultCompletionParams("x"))
	assert.ErrorIs(t, err, errReservationSpent)
}

func TestTokenizeRoundTrip(t *testing.T) {
	c := openFake(t, enginetest.New())
	for _, s := range []string{"", "hello world", "naïve café", "line\nbreak"} {
		toks, err := c.Tokenize(s)
		require.NoError(t, err)
		back, err := c.Detokenize(toks)
		require.NoError(t, err)
		assert.Equal(t, s, back)
	}
}

func TestEmbed(t *testing.T) {
	c := openFake(t, enginetest.New())
	_, err := c.Embed("x")
	assert.True(t, IsEmbeddingDisabled(err))

	e := openFake(t, enginetest.New(), func(p *engine.ContextParams) { p.Embedding = true })
	v, err := e.Embed("hello")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestState_PersistRestore(t *testing.T) {
	f := enginetest.New("ok")
	c := openFake(t, f)
	_, err := c.Generate(engine.DefaultCompletionParams("the prompt"))
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = c.PersistState("", 0)
	assert.True(t, IsInvalidPath(err))
	_, err = c.PersistState(filepath.Join(dir, "nodir", "s.bin"), 0)
	assert.True(t, IsInvalidPath(err))

	path := filepath.Join(dir, "s.bin")
	n, err := c.PersistState(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = c.RestoreState(filepath.Join(dir, "missing.bin"))
	assert.True(t, IsInvalidPath(err))
	info, err := c.RestoreState(path)
	require.NoError(t, err)
	assert.Equal(t, "the", info.Prompt)
}

func TestFormatChatAndBench(t *testing.T) {
	c := openFake(t, enginetest.New())
	_, err := c.FormatChat(nil, "")
	assert.True(t, IsMissingParameter(err))
	s, err := c.FormatChat([]engine.ChatMessage{{Role: "user", Content: "hi"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "<|user|>hi\n<|assistant|>", s)
	b, err := c.Bench(8, 4, 1, 1)
	require.NoError(t, err)
	assert.Contains(t, b, "fake 7B Q4_0")
}

func TestRelease_IdempotentAndBlocksFurtherUse(t *testing.T) {
	f := enginetest.New()
	c := openFake(t, f)
	c.Release()
	c.Release()
	assert.Equal(t, StateReleased, c.State())
	assert.Equal(t, 1, f.Calls("free"))

	_, err := c.Tokenize("x")
	assert.True(t, IsReleased(err))
	_, err = c.Generate(engine.DefaultCompletionParams("x"))
	assert.True(t, IsReleased(err))
	_, err = c.Reserve()
	assert.True(t, IsReleased(err))
	assert.Equal(t, 0, f.Misuse())
}

func TestRelease_StopsAndWaitsForGeneration(t *testing.T) {
	f := enginetest.New("a", "b", "c")
	c := openFake(t, f)
	reached, release := f.HoldAfter(1)
	defer release()

	done := make(chan engine.CompletionResult, 1)
	go func() {
		res, _ := c.Generate(engine.DefaultCompletionParams("x"))
		done <- res
	}()
	<-reached
	c.Release()
	res := <-done
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, 0, f.Live())
	assert.Equal(t, 0, f.Misuse())
}

func TestRelease_DuringGenerationNotifiesListenerOnce(t *testing.T) {
	f := enginetest.New("a", "b", "c")
	c := openFake(t, f)
	reached, release := f.HoldAfter(1)
	defer release()
	rec := &recorder{}
	c.Events().Attach(rec)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p := engine.DefaultCompletionParams("x")
		p.Stream = true
		_, _ = c.Generate(p)
	}()
	<-reached
	c.Release()
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.done, 1)
	assert.True(t, rec.done[0].Result.StoppedEarly)
	assert.Equal(t, []string{"a"}, rec.fragments)
}

func TestStop_AfterEngineReturnedKeepsResult(t *testing.T) {
	f := enginetest.New("a", "b")
	c := openFake(t, f)
	r, err := c.Reserve()
	require.NoError(t, err)
	res, err := r.Run(engine.DefaultCompletionParams("x"))
	require.NoError(t, err)

	c.Stop()
	assert.False(t, res.StoppedEarly)
	assert.True(t, res.StoppedEOS)
	assert.Equal(t, 0, f.Calls("stop"), "no engine call is pending")
	r.Finish(Completion{ContextID: c.ID(), Result: res})

	res, err = c.Generate(engine.DefaultCompletionParams("x"))
	require.NoError(t, err)
	assert.False(t, res.StoppedEarly, "a late stop must not leak into the next generation")
}

func TestStop_BeforeRunSkipsEngine(t *testing.T) {
	f := enginetest.New("a")
	c := openFake(t, f)
	r, err := c.Reserve()
	require.NoError(t, err)
	c.Stop()
	res, err := r.Run(engine.DefaultCompletionParams("x"))
	require.NoError(t, err)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, 0, f.Calls("generate"))
	r.Finish(Completion{ContextID: c.ID(), Result: res})
	assert.Equal(t, StateIdle, c.State())
}

func TestReservation_FinishOnce(t *testing.T) {
	c := openFake(t, enginetest.New("z"))
	rec := &recorder{}
	c.Events().Attach(rec)
	r, err := c.Reserve()
	require.NoError(t, err)
	assert.True(t, r.Finish(Completion{ContextID: c.ID()}))
	assert.False(t, r.Finish(Completion{ContextID: c.ID()}))
	r.Cancel()
	assert.Len(t, rec.done, 1)
	assert.Equal(t, StateIdle, c.State())
}

func TestInvalidParamsRejectedBeforeEngine(t *testing.T) {
	f := enginetest.New("a")
	p := engine.DefaultContextParams(createModelFile(t, t.TempDir(), "m.gguf"))
	p.BatchSize = -1
	_, err := Open(f, 1, p)
	assert.True(t, engine.IsInvalidParameter(err), "got %v", err)
	assert.Equal(t, 0, f.TotalCalls())

	c := openFake(t, f)
	cp := engine.DefaultCompletionParams("x")
	cp.Mirostat = 7
	_, err = c.Generate(cp)
	assert.True(t, engine.IsInvalidParameter(err), "got %v", err)
	assert.Equal(t, 0, f.Calls("generate"))
	assert.Equal(t, StateIdle, c.State())
}

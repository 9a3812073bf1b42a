package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"llamactx/internal/engine"
	"llamactx/internal/engine/enginetest"
	"llamactx/internal/llmctx"
)

// createModelFile writes a minimal file carrying the GGUF signature.
func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, append([]byte("GGUF"), make([]byte, 28)...), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestManager returns a manager over a fake engine with one open context.
func newTestManager(t *testing.T, cfg ManagerConfig, fragments ...string) (*Manager, *enginetest.Fake, int) {
	t.Helper()
	f := enginetest.New(fragments...)
	cfg.Binding = f
	m := NewWithConfig(cfg)
	t.Cleanup(m.Shutdown)
	info, err := m.Open(testCtx(t), engine.DefaultContextParams(createModelFile(t, t.TempDir(), "m.gguf")))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return m, f, info.ContextID
}

// collector records listener callbacks in arrival order.
type collector struct {
	mu    sync.Mutex
	seq   []string
	done  []llmctx.Completion
	doneC chan struct{}
}

func newCollector() *collector { return &collector{doneC: make(chan struct{}, 8)} }

func (c *collector) OnFragment(f engine.Fragment) {
	c.mu.Lock()
	c.seq = append(c.seq, "frag:"+f.Text)
	c.mu.Unlock()
}

func (c *collector) OnComplete(done llmctx.Completion) {
	c.mu.Lock()
	c.seq = append(c.seq, "done")
	c.done = append(c.done, done)
	c.mu.Unlock()
	c.doneC <- struct{}{}
}

func (c *collector) snapshot() ([]string, []llmctx.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seq...), append([]llmctx.Completion(nil), c.done...)
}

package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamactx/internal/engine"
	"llamactx/internal/engine/enginetest"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "llamactx", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "chat", "models", "inspect", "tokenize", "bench", "history"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
	assert.Equal(t, "info", cmd.PersistentFlags().Lookup("log-level").DefValue)
	assert.Equal(t, "console", cmd.PersistentFlags().Lookup("log-format").DefValue)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", errors.New("y"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "x: y", WrapExitError(ExitFailure, "x", errors.New("y")).Error())
}

// useFake routes every command in the test through f.
func useFake(t *testing.T, f *enginetest.Fake) {
	t.Helper()
	prev := newBinding
	newBinding = func() engine.Binding { return f }
	t.Cleanup(func() { newBinding = prev })
}

func createModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, append([]byte("GGUF"), make([]byte, 28)...), 0o644))
	return p
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level", "off"}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestInvalidConfigIsCommandError(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("capacity: -3\n"), 0o644))
	_, _, err := execute(t, "", "--config", cfg, "models", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnknownConfigExtension(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cfg.ini")
	require.NoError(t, os.WriteFile(cfg, []byte("x=1\n"), 0o644))
	_, _, err := execute(t, "", "--config", cfg, "models")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamactx/internal/engine/enginetest"
	"llamactx/pkg/types"
)

func TestRunCommand(t *testing.T) {
	f := enginetest.New("He", "llo", " there")
	useFake(t, f)
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	out, errOut, err := execute(t, "", "run", "--model", model, "Say", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello there\n", out)
	assert.Contains(t, errOut, "3 tokens predicted, 9 evaluated")
	assert.Contains(t, errOut, "stop: eos")
	assert.Equal(t, 0, f.Live(), "context must be released on exit")
}

func TestRunCommand_Stream(t *testing.T) {
	f := enginetest.New("He", "llo", " there")
	useFake(t, f)
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	out, _, err := execute(t, "", "run", "--model", model, "--stream", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there\n", out)
}

func TestRunCommand_MaxTokensAndStop(t *testing.T) {
	f := enginetest.New("a", "b", "c", "d")
	useFake(t, f)
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	out, errOut, err := execute(t, "", "run", "--model", model, "-n", "2", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ab\n", out)
	assert.Contains(t, errOut, "stop: limit")

	out, errOut, err = execute(t, "", "run", "--model", model, "--stop", "c", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ab\n", out)
	assert.Contains(t, errOut, `stop: word "c"`)
}

func TestRunCommand_NotGGUF(t *testing.T) {
	f := enginetest.New("x")
	useFake(t, f)
	bad := filepath.Join(t.TempDir(), "bad.gguf")
	require.NoError(t, os.WriteFile(bad, []byte("nope, not a model"), 0o644))

	_, _, err := execute(t, "", "run", "--model", bad, "hi")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, 0, f.Calls("open"), "engine must not see an invalid file")
}

func TestRunCommand_RequiresModel(t *testing.T) {
	useFake(t, enginetest.New())
	_, _, err := execute(t, "", "run", "hi")
	require.Error(t, err)
}

func TestModelsCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	createModelFile(t, dir, "b-model.Q8_0.gguf")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-broken.gguf"), []byte("zzzz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	out, _, err := execute(t, "", "models", "--dir", dir, "--json")
	require.NoError(t, err)
	var resp types.ModelsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Models, 2)
	assert.Equal(t, "a-broken.gguf", resp.Models[0].ID)
	assert.False(t, resp.Models[0].Valid)
	assert.Equal(t, "Q8_0", resp.Models[1].Quant)
	assert.True(t, resp.Models[1].Valid)
}

func TestModelsCommand_EmptyDir(t *testing.T) {
	out, _, err := execute(t, "", "models", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "no models found\n", out)
}

func TestInspectCommand(t *testing.T) {
	useFake(t, enginetest.New())
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	out, _, err := execute(t, "", "inspect", "--model", model)
	require.NoError(t, err)
	assert.Contains(t, out, "fake 7B Q4_0")
	assert.Contains(t, out, "general.architecture = fake")

	out, _, err = execute(t, "", "inspect", "--model", model, "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, false, info["gpu"])
}

func TestTokenizeCommand(t *testing.T) {
	useFake(t, enginetest.New())
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	out, _, err := execute(t, "", "tokenize", "--model", model, "--detokenize", "hi")
	require.NoError(t, err)
	assert.Equal(t, "2 tokens\n104 105\n\"hi\"\n", out)
}

func TestBenchCommand(t *testing.T) {
	useFake(t, enginetest.New())
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	out, _, err := execute(t, "", "bench", "--model", model, "--pp", "8", "--tg", "4")
	require.NoError(t, err)
	assert.Equal(t, "[\"fake 7B Q4_0\",8,4,1,1]\n", out)
}

func TestHistoryCommand(t *testing.T) {
	useFake(t, enginetest.New("ok"))
	dir := t.TempDir()
	model := createModelFile(t, dir, "tiny.gguf")
	cfg := filepath.Join(dir, "llamactx.yaml")
	journalPath := filepath.Join(dir, "journal.db")
	require.NoError(t, os.WriteFile(cfg, []byte("journal_path: "+journalPath+"\n"), 0o644))

	_, _, err := execute(t, "", "--config", cfg, "run", "--model", model, "first")
	require.NoError(t, err)
	_, _, err = execute(t, "", "--config", cfg, "run", "--model", model, "second")
	require.NoError(t, err)

	out, _, err := execute(t, "", "--config", cfg, "history", "--json", "--limit", "5")
	require.NoError(t, err)
	var entries []types.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, model, e.Model)
		assert.Equal(t, 1, e.TokensPredicted)
		assert.NotEmpty(t, e.RequestID)
	}
}

func TestHistoryCommand_NoJournal(t *testing.T) {
	_, _, err := execute(t, "", "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestChatCommand(t *testing.T) {
	useFake(t, enginetest.New("He", "llo", " there"))
	dir := t.TempDir()
	model := createModelFile(t, dir, "tiny.gguf")
	state := filepath.Join(dir, "chat.state")

	in := "hello\n/tokens ab\n/save " + state + "\n/load " + state + "\n/bogus\n/quit\n"
	out, errOut, err := execute(t, in, "chat", "--model", model)
	require.NoError(t, err)

	assert.Contains(t, out, "loaded fake 7B Q4_0")
	assert.Contains(t, out, "Hello there\n")
	assert.Contains(t, out, "2 tokens\n97 98\n")
	// the formatted prompt "<|user|>hello\n<|assistant|>" is what the fake persists
	assert.Contains(t, out, "saved 27 tokens to "+state)
	assert.Contains(t, out, "restored 27 tokens from "+state)
	assert.Contains(t, errOut, "unknown command /bogus")
}

func TestChatCommand_EOFExits(t *testing.T) {
	f := enginetest.New("x")
	useFake(t, f)
	model := createModelFile(t, t.TempDir(), "tiny.gguf")

	_, _, err := execute(t, "", "chat", "--model", model)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Live())
	assert.Equal(t, 0, f.Calls("generate"))
}

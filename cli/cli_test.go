package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zot/aplua/internal/apclient"
)

func writeJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRenderFileNodeList(t *testing.T) {
	path := writeJSON(t, `[
		{"type": "player_id", "text": "2"},
		{"text": " found "},
		{"type": "item_id", "text": "77", "player": 2, "flags": 1}
	]`)
	out, err := renderFile(path, "text")
	require.NoError(t, err)
	assert.Equal(t, "Player 2 found Item 77", out)
}

func TestRenderFilePacket(t *testing.T) {
	path := writeJSON(t, `{"cmd": "PrintJSON", "data": [{"text": "a<b"}]}`)
	out, err := renderFile(path, "html")
	require.NoError(t, err)
	assert.Contains(t, out, "a&lt;b")
}

func TestRenderFileErrors(t *testing.T) {
	_, err := renderFile(writeJSON(t, `[]`), "pdf")
	assert.ErrorContains(t, err, "unknown format")

	_, err = renderFile(writeJSON(t, `{"cmd": "Print"}`), "text")
	assert.ErrorContains(t, err, "no text nodes")

	_, err = renderFile(writeJSON(t, `[{"type": "item_id", "text": "sword"}]`), "text")
	assert.ErrorIs(t, err, apclient.ErrUnrenderable)

	_, err = renderFile(filepath.Join(t.TempDir(), "missing.json"), "text")
	assert.Error(t, err)
}

func TestRunWithHooksDispatch(t *testing.T) {
	var seen string
	hooks := &Hooks{
		BeforeDispatch: func(command string, args []string) (bool, int) {
			seen = command
			return command == "custom", 7
		},
	}
	assert.Equal(t, 7, RunWithHooks([]string{"custom"}, hooks))
	assert.Equal(t, "custom", seen)
	assert.Equal(t, 0, RunWithHooks([]string{"version"}, hooks))
	assert.Equal(t, 1, RunWithHooks([]string{"nonsense"}, hooks))
	assert.Equal(t, 1, Run([]string{"render"}))
}

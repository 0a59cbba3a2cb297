package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandVerbosityFlags(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"-vvv"}, []string{"-v", "-v", "-v"}},
		{[]string{"-v", "run"}, []string{"-v", "run"}},
		{[]string{"-version"}, []string{"-version"}},
		{[]string{"--vv"}, []string{"--vv"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandVerbosityFlags(tt.in))
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, rest, err := Load([]string{"-config", filepath.Join(dir, "missing.toml")})
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, "ws://localhost:38281", cfg.Client.URI)
	assert.Equal(t, "main.lua", cfg.Lua.Script)
	assert.Equal(t, 16*time.Millisecond, cfg.Poll.Interval.Duration())
	assert.NotEmpty(t, cfg.Client.UUID, "uuid is generated when not configured")
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[client]
uri = "toml.example:1"
game = "TomlGame"
uuid = "toml-uuid"

[lua]
script = "toml.lua"
hot_reload = true

[poll]
interval = "50ms"

[logging]
verbosity = 1
`), 0o644))

	t.Setenv("APLUA_GAME", "EnvGame")
	t.Setenv("APLUA_VERBOSITY", "2")

	cfg, rest, err := Load([]string{"-config", path, "-uri", "flag.example:2", "-vvv", "extra.lua"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example:2", cfg.Client.URI)
	assert.Equal(t, "EnvGame", cfg.Client.Game)
	assert.Equal(t, "toml-uuid", cfg.Client.UUID)
	assert.Equal(t, "toml.lua", cfg.Lua.Script)
	assert.True(t, cfg.Lua.HotReload)
	assert.Equal(t, 50*time.Millisecond, cfg.Poll.Interval.Duration())
	assert.Equal(t, 3, cfg.Verbosity())
	assert.Equal(t, []string{"extra.lua"}, rest)
}

func TestLoadRejectsBadInterval(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Load([]string{"-config", filepath.Join(dir, "none.toml"), "-poll-interval", "-1s"})
	assert.Error(t, err)
}

func TestVerbosity(t *testing.T) {
	var nilCfg *Config
	assert.Equal(t, 0, nilCfg.Verbosity())
	nilCfg.Log(1, "not written")

	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	assert.Equal(t, 3, cfg.Verbosity())
}

package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/config"
	"github.com/zot/aplua/internal/lua"
)

// refusedURI points at a port nothing listens on, so the first poll fails fast
// and fires socket_error.
const refusedURI = "ws://127.0.0.1:1"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testConfig(t *testing.T, script string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Lua.Path = dir
	cfg.Lua.Script = "main.lua"
	cfg.Client.UUID = "test-uuid"
	writeFile(t, filepath.Join(dir, "main.lua"), script)
	return cfg
}

func newRunner(t *testing.T, script string) *Runner {
	t.Helper()
	r := New(testConfig(t, script), WithErrorFormatter(lua.MessageOnly))
	t.Cleanup(r.Stop)
	return r
}

func TestScriptPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Lua.Path = "scripts"
	cfg.Lua.Script = "does-not-exist.lua"
	assert.Equal(t, filepath.Join("scripts", "does-not-exist.lua"), New(cfg).ScriptPath())

	cfg.Lua.Script = "/abs/main.lua"
	assert.Equal(t, "/abs/main.lua", New(cfg).ScriptPath())

	cfg.Lua.Path = ""
	cfg.Lua.Script = "main.lua"
	assert.Equal(t, "main.lua", New(cfg).ScriptPath())
}

func TestStartFindsModulesInLuaPath(t *testing.T) {
	r := newRunner(t, `
		local helper = require("helper")
		answer = helper.answer
		local APClient = require("apclientpp")
		status_ready = APClient.ClientStatus.READY
	`)
	writeFile(t, filepath.Join(r.config.Lua.Path, "helper.lua"), `return {answer = 42}`)

	require.NoError(t, r.Start())
	assert.Equal(t, glua.LNumber(42), r.State().GetGlobal("answer"))
	assert.Equal(t, glua.LNumber(10), r.State().GetGlobal("status_ready"))
	assert.Error(t, r.Start(), "a second start is refused")
}

func TestStartFailureLeavesRunnerStopped(t *testing.T) {
	r := newRunner(t, `this is not lua`)
	err := r.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main.lua")
	assert.Nil(t, r.State())
	assert.ErrorIs(t, r.PollOnce(), ErrNotStarted)
}

func TestPollOnceDrivesClients(t *testing.T) {
	r := newRunner(t, `
		local APClient = require("apclientpp")
		socket_errors = 0
		client = APClient(nil, "Test", "`+refusedURI+`")
		client:set_socket_error_handler(function(msg)
			socket_errors = socket_errors + 1
			last_error = msg
		end)
	`)
	require.NoError(t, r.Start())
	require.Len(t, r.Module().Bridges(), 1)

	require.NoError(t, r.PollOnce())
	assert.Equal(t, glua.LNumber(1), r.State().GetGlobal("socket_errors"))
	assert.NotEqual(t, glua.LNil, r.State().GetGlobal("last_error"))
}

func TestPollOnceReportsHandlerErrors(t *testing.T) {
	r := newRunner(t, `
		local APClient = require("apclientpp")
		client = APClient(nil, "Test", "`+refusedURI+`")
		client:set_socket_error_handler(function() error("boom") end)
	`)
	require.NoError(t, r.Start())

	err := r.PollOnce()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error calling socket_error_handler:")
	assert.Contains(t, err.Error(), "boom")
}

func TestReloadClosesClientsFirst(t *testing.T) {
	r := newRunner(t, `
		local APClient = require("apclientpp")
		client = APClient(nil, "Test", "`+refusedURI+`")
		generation = 1
	`)
	require.NoError(t, r.Start())
	old := r.Module().Bridges()[0]
	oldState := r.State()

	writeFile(t, r.ScriptPath(), `generation = 2`)
	require.NoError(t, r.Reload())
	assert.True(t, old.Closed())
	assert.NotSame(t, oldState, r.State())
	assert.Equal(t, glua.LNumber(2), r.State().GetGlobal("generation"))
	assert.Empty(t, r.Module().Bridges())
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRunner(t, `
		local APClient = require("apclientpp")
		client = APClient(nil, "Test", "`+refusedURI+`")
		client:set_socket_error_handler(function() error("logged, not fatal") end)
	`)
	r.config.Poll.Interval = config.Duration(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Nil(t, r.State())
}

func TestRunReportsStartFailure(t *testing.T) {
	r := newRunner(t, `error("bad script")`)
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad script")
}

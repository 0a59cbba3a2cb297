// Package runner hosts the Lua state that runs a user script and drives the
// clients it creates.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	glua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/config"
	"github.com/zot/aplua/internal/lua"
)

// ErrNotStarted is returned when polling without a running script.
var ErrNotStarted = errors.New("runner: script not running")

// Runner owns one Lua state. All of its methods must be called from the same
// goroutine; the hot loader only signals Run, it never touches the state.
type Runner struct {
	config    *config.Config
	newClient lua.ClientFactory
	format    lua.ErrorFormatter

	L      *glua.LState
	module *lua.Module
	reload chan string
}

// Option configures a Runner.
type Option func(*Runner)

// WithClientFactory replaces the protocol client used by scripts.
func WithClientFactory(f lua.ClientFactory) Option {
	return func(r *Runner) { r.newClient = f }
}

// WithErrorFormatter sets how handler failures are rendered.
func WithErrorFormatter(f lua.ErrorFormatter) Option {
	return func(r *Runner) { r.format = f }
}

// New creates a Runner for cfg. Nothing runs until Start or Run.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		config: cfg,
		reload: make(chan string, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log logs a message via the config.
func (r *Runner) Log(level int, format string, args ...any) {
	r.config.Log(level, format, args...)
}

// State returns the current Lua state, or nil when no script is running.
func (r *Runner) State() *glua.LState {
	return r.L
}

// Module returns the client module of the current state.
func (r *Runner) Module() *lua.Module {
	return r.module
}

// ScriptPath resolves the configured script. A relative script that does not
// exist in the working directory is looked up in the Lua path.
func (r *Runner) ScriptPath() string {
	script := r.config.Lua.Script
	if filepath.IsAbs(script) || r.config.Lua.Path == "" {
		return script
	}
	if _, err := os.Stat(script); err == nil {
		return script
	}
	return filepath.Join(r.config.Lua.Path, script)
}

// Start creates a fresh Lua state and runs the script in it.
func (r *Runner) Start() error {
	if r.L != nil {
		return errors.New("runner: already started")
	}
	L := glua.NewState()
	module := lua.NewModule(lua.Options{
		Config:      r.config,
		NewClient:   r.newClient,
		FormatError: r.format,
	})
	module.Preload(L)
	addPackagePath(L, r.config.Lua.Path)
	r.L, r.module = L, module

	path := r.ScriptPath()
	r.Log(1, "runner: running %s", path)
	if err := L.DoFile(path); err != nil {
		r.Stop()
		return fmt.Errorf("running %s: %w", path, err)
	}
	return nil
}

// addPackagePath lets require find modules in dir before the default locations.
func addPackagePath(L *glua.LState, dir string) {
	if dir == "" {
		return
	}
	pkg, ok := L.GetGlobal("package").(*glua.LTable)
	if !ok {
		return
	}
	current := glua.LVAsString(pkg.RawGetString("path"))
	L.SetField(pkg, "path", glua.LString(filepath.Join(dir, "?.lua")+";"+current))
}

// PollOnce polls every open client once. A failing client does not keep the
// others from being polled; the failures come back joined.
func (r *Runner) PollOnce() error {
	if r.L == nil {
		return ErrNotStarted
	}
	var errs []error
	for _, b := range r.module.Bridges() {
		if err := b.Poll(r.L); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop closes every client and then the Lua state.
func (r *Runner) Stop() {
	if r.L == nil {
		return
	}
	if err := r.module.Close(); err != nil {
		r.Log(0, "runner: closing clients: %v", err)
	}
	r.L.Close()
	r.L, r.module = nil, nil
}

// Reload tears the current state down and runs the script again.
func (r *Runner) Reload() error {
	r.Stop()
	return r.Start()
}

func (r *Runner) requestReload(path string) {
	select {
	case r.reload <- path:
	default:
	}
}

func (r *Runner) watchDirs() []string {
	return []string{filepath.Dir(r.ScriptPath()), r.config.Lua.Path}
}

// Run starts the script and polls its clients every poll interval until ctx
// is done. Poll errors are logged and do not stop the loop. A failed reload
// leaves the runner idle until the next change.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	defer r.Stop()

	if r.config.Lua.HotReload {
		h, err := NewHotLoader(r.config, r.watchDirs(), r.requestReload)
		if err != nil {
			return fmt.Errorf("hot reload: %w", err)
		}
		if err := h.Start(); err != nil {
			h.Stop()
			return fmt.Errorf("hot reload: %w", err)
		}
		defer h.Stop()
	}

	interval := r.config.Poll.Interval.Duration()
	if interval <= 0 {
		interval = config.DefaultConfig().Poll.Interval.Duration()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Log(1, "runner: shutting down")
			return nil
		case path := <-r.reload:
			r.Log(0, "runner: %s changed, reloading", path)
			if err := r.Reload(); err != nil {
				r.Log(0, "runner: reload failed: %v", err)
			}
		case <-ticker.C:
			if r.L == nil {
				continue
			}
			if err := r.PollOnce(); err != nil {
				r.Log(0, "runner: %v", err)
			}
		}
	}
}

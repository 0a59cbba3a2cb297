// Package config handles configuration loading from CLI flags, environment variables, and TOML files.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Config holds all configuration settings for the script host.
type Config struct {
	Client  ClientConfig  `toml:"client"`
	Lua     LuaConfig     `toml:"lua"`
	Poll    PollConfig    `toml:"poll"`
	Logging LoggingConfig `toml:"logging"`
}

// ClientConfig holds the defaults handed to scripts that construct a client.
type ClientConfig struct {
	URI  string `toml:"uri"`
	Game string `toml:"game"`
	UUID string `toml:"uuid"` // generated when empty
}

// LuaConfig holds Lua runtime settings.
type LuaConfig struct {
	Script    string `toml:"script"`
	Path      string `toml:"path"`
	HotReload bool   `toml:"hot_reload"`
}

// PollConfig holds driver settings.
type PollConfig struct {
	Interval Duration `toml:"interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level     string `toml:"level"`     // "debug", "info", "warn", "error"
	Verbosity int    `toml:"verbosity"` // 0=errors, 1=connections, 2=packets, 3=handlers
}

// verbosityCounter implements flag.Value for counting -v flags.
type verbosityCounter int

func (v *verbosityCounter) String() string {
	return fmt.Sprintf("%d", *v)
}

func (v *verbosityCounter) Set(string) error {
	*v++
	return nil
}

func (v *verbosityCounter) IsBoolFlag() bool {
	return true
}

// expandVerbosityFlags preprocesses args to expand -vvv into -v -v -v.
func expandVerbosityFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] == 'v' {
			allV := true
			for _, c := range arg[1:] {
				if c != 'v' {
					allV = false
					break
				}
			}
			if allV {
				for range arg[1:] {
					result = append(result, "-v")
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

// Duration is a time.Duration that can be unmarshaled from TOML strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			URI: "ws://localhost:38281",
		},
		Lua: LuaConfig{
			Script: "main.lua",
			Path:   "lua/",
		},
		Poll: PollConfig{
			Interval: Duration(16 * time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:     "info",
			Verbosity: 0,
		},
	}
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults.
// Positional arguments left after the flags are returned alongside the config.
func Load(args []string) (*Config, []string, error) {
	cfg := DefaultConfig()
	args = expandVerbosityFlags(args)

	fs := flag.NewFlagSet("aplua", flag.ContinueOnError)
	configPath := fs.String("config", "config.toml", "TOML configuration file")

	uri := fs.String("uri", "", "Archipelago server address")
	game := fs.String("game", "", "Game name passed to scripts")
	clientUUID := fs.String("uuid", "", "Client UUID (generated when empty)")

	script := fs.String("script", "", "Lua script to run")
	luaPath := fs.String("lua-path", "", "Lua module search directory")
	hotReload := fs.Bool("hot-reload", false, "Restart the script when it changes")

	pollInterval := fs.Duration("poll-interval", 0, "Interval between poll calls")

	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	var verbosity verbosityCounter
	fs.Var(&verbosity, "v", "Verbosity level (use -v, -vv, or -vvv)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if err := cfg.loadTOML(*configPath); err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}

	cfg.applyEnv()

	if *uri != "" {
		cfg.Client.URI = *uri
	}
	if *game != "" {
		cfg.Client.Game = *game
	}
	if *clientUUID != "" {
		cfg.Client.UUID = *clientUUID
	}
	if *script != "" {
		cfg.Lua.Script = *script
	}
	if *luaPath != "" {
		cfg.Lua.Path = *luaPath
	}
	if *hotReload {
		cfg.Lua.HotReload = true
	}
	if *pollInterval != 0 {
		cfg.Poll.Interval = Duration(*pollInterval)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if verbosity > 0 {
		cfg.Logging.Verbosity = int(verbosity)
	}
	if cfg.Client.UUID == "" {
		cfg.Client.UUID = uuid.NewString()
	}
	if cfg.Poll.Interval <= 0 {
		return nil, nil, fmt.Errorf("poll interval must be positive, got %s", cfg.Poll.Interval)
	}

	return cfg, fs.Args(), nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("APLUA_URI"); v != "" {
		c.Client.URI = v
	}
	if v := os.Getenv("APLUA_GAME"); v != "" {
		c.Client.Game = v
	}
	if v := os.Getenv("APLUA_UUID"); v != "" {
		c.Client.UUID = v
	}
	if v := os.Getenv("APLUA_SCRIPT"); v != "" {
		c.Lua.Script = v
	}
	if v := os.Getenv("APLUA_LUA_PATH"); v != "" {
		c.Lua.Path = v
	}
	if v := os.Getenv("APLUA_HOT_RELOAD"); v != "" {
		c.Lua.HotReload = v == "true" || v == "1"
	}
	if v := os.Getenv("APLUA_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poll.Interval = Duration(d)
		}
	}
	if v := os.Getenv("APLUA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("APLUA_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// Verbosity returns the configured verbosity level (0-3).
// Log level "debug" implies full verbosity.
func (c *Config) Verbosity() int {
	if c == nil {
		return 0
	}
	if strings.EqualFold(c.Logging.Level, "debug") {
		return max(c.Logging.Verbosity, 3)
	}
	return c.Logging.Verbosity
}

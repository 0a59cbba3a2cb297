// Package cli provides the command-line interface for aplua.
// It exports Run() and RunWithHooks() to allow extension by wrapper projects.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/zot/aplua/internal/apclient"
	"github.com/zot/aplua/internal/config"
	"github.com/zot/aplua/internal/lua"
	"github.com/zot/aplua/internal/runner"
)

// Version is the program version, the same as APClient._VERSION.
const Version = lua.ModuleVersion

// Hooks allows extending the CLI with additional commands.
type Hooks struct {
	// BeforeDispatch is called before command dispatch.
	// Return (handled=true, exitCode) to skip normal dispatch.
	BeforeDispatch func(command string, args []string) (handled bool, exitCode int)

	// CustomHelp returns additional help text to append.
	CustomHelp func() string

	// CustomVersion returns version info to append (optional).
	CustomVersion func() string

	// RunnerOptions are passed to the runner of the run command.
	RunnerOptions []runner.Option
}

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	if len(args) < 1 {
		return runScript(args, hooks)
	}

	command := args[0]
	cmdArgs := args[1:]

	if hooks != nil && hooks.BeforeDispatch != nil {
		if handled, code := hooks.BeforeDispatch(command, cmdArgs); handled {
			return code
		}
	}

	switch command {
	case "run":
		return runScript(cmdArgs, hooks)
	case "render":
		return runRender(cmdArgs)
	case "help", "-h", "--help":
		printHelp(hooks)
		return 0
	case "version", "--version":
		printVersion(hooks)
		return 0
	default:
		// flags alone mean run
		if len(command) > 0 && command[0] == '-' {
			return runScript(args, hooks)
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printHelp(hooks)
		return 1
	}
}

// runScript runs the configured script until SIGINT or SIGTERM.
// A positional argument overrides the configured script.
func runScript(args []string, hooks *Hooks) int {
	cfg, rest, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if len(rest) > 0 {
		cfg.Lua.Script = rest[0]
	}

	var opts []runner.Option
	if hooks != nil {
		opts = hooks.RunnerOptions
	}
	r := runner.New(cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	return 0
}

// runRender renders a text node list, or a PrintJSON packet, from a file.
func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	format := fs.String("format", "text", "Output format: text, html, ansi")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: aplua render [-format text|html|ansi] file.json")
		return 1
	}
	out, err := renderFile(fs.Arg(0), *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(out)
	return 0
}

func renderFile(path, format string) (string, error) {
	renderFormat, err := parseFormat(format)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	nodes, err := decodeNodes(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return apclient.Render(nodes, renderFormat, offlineNames{})
}

func parseFormat(name string) (apclient.RenderFormat, error) {
	switch name {
	case "text":
		return apclient.RenderText, nil
	case "html":
		return apclient.RenderHTML, nil
	case "ansi":
		return apclient.RenderANSI, nil
	}
	return 0, fmt.Errorf("unknown format %q", name)
}

// decodeNodes accepts either a bare node list or a packet with a data field.
func decodeNodes(data []byte) ([]apclient.TextNode, error) {
	var nodes []apclient.TextNode
	if err := json.Unmarshal(data, &nodes); err == nil {
		return nodes, nil
	}
	var packet struct {
		Data []apclient.TextNode `json:"data"`
	}
	if err := json.Unmarshal(data, &packet); err != nil {
		return nil, err
	}
	if packet.Data == nil {
		return nil, errors.New("no text nodes found")
	}
	return packet.Data, nil
}

// offlineNames resolves ids without a data package.
type offlineNames struct{}

func (offlineNames) PlayerNumber() int { return -1 }
func (offlineNames) PlayerAlias(slot int) string { return "Player " + strconv.Itoa(slot) }
func (offlineNames) PlayerGame(slot int) string { return "" }

func (offlineNames) ItemName(id int64, game string) string {
	return "Item " + strconv.FormatInt(id, 10)
}

func (offlineNames) LocationName(id int64, game string) string {
	return "Location " + strconv.FormatInt(id, 10)
}

func printHelp(hooks *Hooks) {
	fmt.Println(`aplua: Archipelago client scripting in Lua

Usage: aplua [command] [options]

Commands:
  run [script]    Run a Lua script (default)
  render FILE     Render a text node list without a server
  help            Show this help
  version         Show the version

Run Options:
  -config         Config file (default: config.toml)
  -uri            Server URI (default: ws://localhost:38281)
  -game           Game name
  -uuid           Client UUID (generated when empty)
  -script         Lua script (default: main.lua)
  -lua-path       Lua module directory (default: lua/)
  -hot-reload     Restart the script when it changes
  -poll-interval  Interval between polls (default: 16ms)
  -log-level      Log level: debug, info, warn, error
  -v, -vv, -vvv   Verbosity

Render Options:
  -format         text, html or ansi (default: text)

Examples:
  aplua run -uri localhost:38281 -game "Clique" bot.lua
  aplua render -format ansi print.json`)

	if hooks != nil && hooks.CustomHelp != nil {
		fmt.Println(hooks.CustomHelp())
	}
}

func printVersion(hooks *Hooks) {
	fmt.Println("aplua v" + Version)
	if hooks != nil && hooks.CustomVersion != nil {
		fmt.Println(hooks.CustomVersion())
	}
}

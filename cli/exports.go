// Package cli provides the command-line interface for aplua.
// This file re-exports internal packages for wrapper projects that embed the
// runner or supply their own protocol client.
package cli

import (
	"github.com/zot/aplua/internal/apclient"
	"github.com/zot/aplua/internal/lua"
	"github.com/zot/aplua/internal/runner"
)

// Re-export runner and bridge types
type (
	Runner         = runner.Runner
	RunnerOption   = runner.Option
	Client         = lua.Client
	ClientFactory  = lua.ClientFactory
	ErrorFormatter = lua.ErrorFormatter
	Bridge         = lua.Bridge
	ProtocolClient = apclient.Client
	TextNode       = apclient.TextNode
)

// Re-export constructors and options
var (
	NewRunner          = runner.New
	WithClientFactory  = runner.WithClientFactory
	WithErrorFormatter = runner.WithErrorFormatter
	NewProtocolClient  = apclient.New
	Render             = apclient.Render
	Traceback          = lua.Traceback
	MessageOnly        = lua.MessageOnly
)

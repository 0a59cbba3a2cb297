// Package cli provides the command-line interface for aplua.
// This file re-exports config types from internal/config for public API.
package cli

import (
	"github.com/zot/aplua/internal/config"
)

// Re-export config types for public API
type (
	Config        = config.Config
	ClientConfig  = config.ClientConfig
	LuaConfig     = config.LuaConfig
	PollConfig    = config.PollConfig
	LoggingConfig = config.LoggingConfig
	Duration      = config.Duration
)

// Re-export config functions for public API
var (
	DefaultConfig = config.DefaultConfig
	Load          = config.Load
)

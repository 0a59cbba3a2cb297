// Package apclient is a thin Archipelago protocol client.
// It owns the websocket, the packet codec and the little bit of state needed
// to answer queries. Every handler fires on the goroutine that calls Poll.
package apclient

import (
	"errors"
	"math"
)

// DefaultURI is used when no server address is given.
const DefaultURI = "ws://localhost:38281"

// InvalidID is returned for names that are not in the data package.
const InvalidID int64 = math.MinInt64

// ErrNotConnected is returned by commands that need a connection the client does not have.
var ErrNotConnected = errors.New("not connected")

// State is the connection state of the client.
type State int

const (
	StateDisconnected State = iota
	StateSocketConnecting
	StateSocketConnected
	StateRoomInfo
	StateSlotConnected
)

// ClientStatus is reported to the server with StatusUpdate.
type ClientStatus int

const (
	StatusUnknown ClientStatus = 0
	StatusReady   ClientStatus = 10
	StatusPlaying ClientStatus = 20
	StatusGoal    ClientStatus = 30
)

// RenderFormat selects the output of Render.
type RenderFormat int

const (
	RenderText RenderFormat = iota
	RenderHTML
	RenderANSI
)

// Item flags carried by NetworkItem.Flags.
const (
	FlagNone         = 0
	FlagAdvancement  = 1
	FlagNeverExclude = 2
	FlagTrap         = 4
)

// HintMode is the create_as_hint parameter of LocationScouts.
type HintMode int

const (
	HintNone HintMode = iota // scout only
	HintAll                  // create hints and announce all of them
	HintNew                  // create hints and announce only new ones
)

// Version is a protocol version triple.
type Version struct {
	Major int `json:"major" mapstructure:"major"`
	Minor int `json:"minor" mapstructure:"minor"`
	Build int `json:"build" mapstructure:"build"`
}

// DefaultVersion is sent when the caller did not specify one.
var DefaultVersion = Version{Major: 0, Minor: 6, Build: 3}

// IsZero reports whether all three fields are zero.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0 && v.Build == 0
}

// NetworkItem is an item as sent by the server.
type NetworkItem struct {
	Item     int64 `json:"item"`
	Location int64 `json:"location"`
	Player   int   `json:"player"`
	Flags    int   `json:"flags"`
	Index    int   `json:"index"`
}

// Player is one entry of the room's player directory.
type Player struct {
	Team  int    `json:"team"`
	Slot  int    `json:"slot"`
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

// DataStorageOperation is one step of a Set command.
type DataStorageOperation struct {
	Operation string `json:"operation" mapstructure:"operation"`
	Value     any    `json:"value" mapstructure:"value"`
}

// TextNode is one segment of a PrintJSON message.
type TextNode struct {
	Type   string `json:"type,omitempty"`
	Color  string `json:"color,omitempty"`
	Text   string `json:"text"`
	Player int    `json:"player,omitempty"`
	Flags  int    `json:"flags,omitempty"`
}

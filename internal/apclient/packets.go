package apclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command names a packet on the wire.
type Command string

const (
	// Server to client
	CmdRoomInfo          Command = "RoomInfo"
	CmdConnectionRefused Command = "ConnectionRefused"
	CmdConnected         Command = "Connected"
	CmdReceivedItems     Command = "ReceivedItems"
	CmdLocationInfo      Command = "LocationInfo"
	CmdRoomUpdate        Command = "RoomUpdate"
	CmdDataPackage       Command = "DataPackage"
	CmdPrint             Command = "Print"
	CmdPrintJSON         Command = "PrintJSON"
	CmdBounced           Command = "Bounced"
	CmdRetrieved         Command = "Retrieved"
	CmdSetReply          Command = "SetReply"

	// Client to server
	CmdConnect        Command = "Connect"
	CmdConnectUpdate  Command = "ConnectUpdate"
	CmdSync           Command = "Sync"
	CmdLocationChecks Command = "LocationChecks"
	CmdLocationScouts Command = "LocationScouts"
	CmdStatusUpdate   Command = "StatusUpdate"
	CmdSay            Command = "Say"
	CmdGetDataPackage Command = "GetDataPackage"
	CmdBounce         Command = "Bounce"
	CmdGet            Command = "Get"
	CmdSet            Command = "Set"
	CmdSetNotify      Command = "SetNotify"
)

// Packet is one decoded server packet. Raw keeps every field for handlers
// that pass the packet through untouched.
type Packet struct {
	Cmd Command
	Raw map[string]any
	Src json.RawMessage
}

// versionJSON is Version with the class marker the server expects.
type versionJSON struct {
	Version
	Class string `json:"class"`
}

func newVersionJSON(v Version) versionJSON {
	return versionJSON{Version: v, Class: "Version"}
}

// ConnectPacket authenticates a slot.
type ConnectPacket struct {
	Cmd           Command     `json:"cmd"`
	Game          string      `json:"game"`
	Name          string      `json:"name"`
	Password      string      `json:"password"`
	UUID          string      `json:"uuid"`
	Version       versionJSON `json:"version"`
	ItemsHandling int         `json:"items_handling"`
	Tags          []string    `json:"tags"`
	SlotData      bool        `json:"slot_data"`
}

// LocationsPacket is shared by LocationChecks and LocationScouts.
type LocationsPacket struct {
	Cmd          Command `json:"cmd"`
	Locations    []int64 `json:"locations"`
	CreateAsHint *int    `json:"create_as_hint,omitempty"`
}

// StatusUpdatePacket reports the client status.
type StatusUpdatePacket struct {
	Cmd    Command      `json:"cmd"`
	Status ClientStatus `json:"status"`
}

// SayPacket sends chat text.
type SayPacket struct {
	Cmd  Command `json:"cmd"`
	Text string  `json:"text"`
}

// GetDataPackagePacket requests name tables.
type GetDataPackagePacket struct {
	Cmd   Command  `json:"cmd"`
	Games []string `json:"games,omitempty"`
}

// BouncePacket relays data to other clients.
type BouncePacket struct {
	Cmd   Command  `json:"cmd"`
	Games []string `json:"games,omitempty"`
	Slots []int    `json:"slots,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Data  any      `json:"data"`
}

// SetNotifyPacket subscribes to data storage keys.
type SetNotifyPacket struct {
	Cmd  Command  `json:"cmd"`
	Keys []string `json:"keys"`
}

// simplePacket is a packet with only a cmd field.
type simplePacket struct {
	Cmd Command `json:"cmd"`
}

// withExtras flattens extra fields next to the fixed ones of a packet.
// Fixed fields win on collision.
func withExtras(fixed map[string]any, extras map[string]any) map[string]any {
	out := make(map[string]any, len(fixed)+len(extras))
	for k, v := range extras {
		out[k] = v
	}
	for k, v := range fixed {
		out[k] = v
	}
	return out
}

// decodeFrame splits a websocket frame into packets. Numbers are kept as
// json.Number so 64-bit ids survive.
func decodeFrame(data []byte) ([]Packet, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	packets := make([]Packet, 0, len(raws))
	for _, raw := range raws {
		var m map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode packet: %w", err)
		}
		cmd, _ := m["cmd"].(string)
		packets = append(packets, Packet{Cmd: Command(cmd), Raw: m, Src: raw})
	}
	return packets, nil
}

// decodeInto re-decodes the packet source into a typed struct.
func (p Packet) decodeInto(v any) error {
	if err := json.Unmarshal(p.Src, v); err != nil {
		return fmt.Errorf("decode %s: %w", p.Cmd, err)
	}
	return nil
}

type roomInfoPacket struct {
	SeedName string   `json:"seed_name"`
	Time     float64  `json:"time"`
	HintCost int      `json:"hint_cost"`
	Games    []string `json:"games"`
	Tags     []string `json:"tags"`
}

type connectedPacket struct {
	Team             int             `json:"team"`
	Slot             int             `json:"slot"`
	Players          []Player        `json:"players"`
	MissingLocations []int64         `json:"missing_locations"`
	CheckedLocations []int64         `json:"checked_locations"`
	HintPoints       int             `json:"hint_points"`
	SlotInfo         map[string]slot `json:"slot_info"`
}

type slot struct {
	Name string `json:"name"`
	Game string `json:"game"`
}

type connectionRefusedPacket struct {
	Errors []string `json:"errors"`
}

type receivedItemsPacket struct {
	Index int           `json:"index"`
	Items []NetworkItem `json:"items"`
}

type locationInfoPacket struct {
	Locations []NetworkItem `json:"locations"`
}

type roomUpdatePacket struct {
	HintPoints       *int     `json:"hint_points"`
	HintCost         *int     `json:"hint_cost"`
	Players          []Player `json:"players"`
	CheckedLocations []int64  `json:"checked_locations"`
}

type printPacket struct {
	Text string `json:"text"`
}

type dataPackagePacket struct {
	Data struct {
		Games map[string]gameData `json:"games"`
	} `json:"data"`
}

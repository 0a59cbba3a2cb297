package lua

import (
	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

type enumValue struct {
	name  string
	value int
}

var enums = []struct {
	name   string
	values []enumValue
}{
	{"ClientStatus", []enumValue{
		{"UNKNOWN", int(apclient.StatusUnknown)},
		{"READY", int(apclient.StatusReady)},
		{"PLAYING", int(apclient.StatusPlaying)},
		{"GOAL", int(apclient.StatusGoal)},
	}},
	{"RenderFormat", []enumValue{
		{"TEXT", int(apclient.RenderText)},
		{"HTML", int(apclient.RenderHTML)},
		{"ANSI", int(apclient.RenderANSI)},
	}},
	{"ItemFlags", []enumValue{
		{"FLAG_NONE", apclient.FlagNone},
		{"FLAG_ADVANCEMENT", apclient.FlagAdvancement},
		{"FLAG_NEVER_EXCLUDE", apclient.FlagNeverExclude},
		{"FLAG_TRAP", apclient.FlagTrap},
	}},
	{"State", []enumValue{
		{"DISCONNECTED", int(apclient.StateDisconnected)},
		{"SOCKET_CONNECTING", int(apclient.StateSocketConnecting)},
		{"SOCKET_CONNECTED", int(apclient.StateSocketConnected)},
		{"ROOM_INFO", int(apclient.StateRoomInfo)},
		{"SLOT_CONNECTED", int(apclient.StateSlotConnected)},
	}},
	{"HintMode", []enumValue{
		{"NONE", int(apclient.HintNone)},
		{"ALL", int(apclient.HintAll)},
		{"NEW", int(apclient.HintNew)},
	}},
}

// registerEnums puts the enum tables and EMPTY_ARRAY on the class table.
func registerEnums(L *lua.LState, class *lua.LTable) {
	for _, e := range enums {
		tbl := L.CreateTable(0, len(e.values))
		for _, v := range e.values {
			tbl.RawSetString(v.name, lua.LNumber(v.value))
		}
		class.RawSetString(e.name, tbl)
	}
	empty := L.NewUserData()
	empty.Value = emptyArray{}
	class.RawSetString("EMPTY_ARRAY", empty)
}

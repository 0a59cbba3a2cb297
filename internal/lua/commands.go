package lua

import (
	"errors"
	"maps"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

// clientMethods lists every method of a client userdata.
func clientMethods() map[string]method {
	methods := map[string]method{
		"poll":  luaPoll,
		"reset": luaReset,
		"close": luaClose,

		"Say":            luaSay,
		"ConnectSlot":    luaConnectSlot,
		"ConnectUpdate":  luaConnectUpdate,
		"Sync":           luaSync,
		"Bounce":         luaBounce,
		"StatusUpdate":   luaStatusUpdate,
		"LocationChecks": luaLocationChecks,
		"LocationScouts": luaLocationScouts,
		"Get":            luaGet,
		"Set":            luaSet,
		"SetNotify":      luaSetNotify,
	}
	for kind := range numEvents {
		name := "set_" + kind.String() + "_handler"
		methods[name] = registerMethod(kind, name)
	}
	maps.Copy(methods, queryMethods())
	return methods
}

func registerMethod(kind EventKind, name string) method {
	return func(b *Bridge, L *lua.LState) int {
		fn, ok := L.Get(2).(*lua.LFunction)
		if !ok {
			argError(L, 2, name, "function")
		}
		b.Register(kind, fn)
		return 0
	}
}

// result pushes whether a command reached the client. Transport errors are
// logged, not raised.
func result(b *Bridge, L *lua.LState, command string, err error) int {
	if err != nil {
		level := 1
		if errors.Is(err, apclient.ErrNotConnected) {
			level = 2
		}
		b.Log(level, "lua: %s failed: %v", command, err)
	}
	L.Push(lua.LBool(err == nil))
	return 1
}

func luaPoll(b *Bridge, L *lua.LState) int {
	if err := b.Poll(L); err != nil {
		raise(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func luaReset(b *Bridge, L *lua.LState) int {
	b.client.Reset()
	return 0
}

func luaClose(b *Bridge, L *lua.LState) int {
	if err := b.Close(); err != nil {
		b.Log(1, "lua: close: %v", err)
	}
	return 0
}

func luaSay(b *Bridge, L *lua.LState) int {
	text := checkString(L, 2, "Say")
	return result(b, L, "Say", b.client.Say(text))
}

// luaConnectSlot: ConnectSlot(name, password, items_handling, [tags], [version])
func luaConnectSlot(b *Bridge, L *lua.LState) int {
	const cmd = "ConnectSlot"
	name := checkString(L, 2, cmd)
	password := optString(L, 3, cmd, "")
	itemsHandling := checkInt(L, 4, cmd)
	tags := optStringList(L, 5, cmd)
	version := optVersion(L, 6, cmd)
	return result(b, L, cmd, b.client.ConnectSlot(name, password, itemsHandling, tags, version))
}

// luaConnectUpdate: ConnectUpdate(items_handling|nil, tags|nil); at least one is required.
func luaConnectUpdate(b *Bridge, L *lua.LState) int {
	const cmd = "ConnectUpdate"
	var itemsHandling *int
	if !absent(L, 2) {
		v := checkInt(L, 2, cmd)
		itemsHandling = &v
	}
	tags := optStringList(L, 3, cmd)
	if itemsHandling == nil && absent(L, 3) {
		argError(L, 2, cmd, "items_handling or tags")
	}
	return result(b, L, cmd, b.client.ConnectUpdate(itemsHandling, tags))
}

func luaSync(b *Bridge, L *lua.LState) int {
	return result(b, L, "Sync", b.client.Sync())
}

// luaBounce: Bounce(data, [games], [slots], [tags])
func luaBounce(b *Bridge, L *lua.LState) int {
	const cmd = "Bounce"
	if _, ok := L.Get(2).(*lua.LTable); !ok {
		argError(L, 2, cmd, "table")
	}
	data := LuaToGo(L.Get(2))
	games := optStringList(L, 3, cmd)
	slots := optInt32List(L, 4, cmd)
	tags := optStringList(L, 5, cmd)
	return result(b, L, cmd, b.client.Bounce(data, games, slots, tags))
}

func luaStatusUpdate(b *Bridge, L *lua.LState) int {
	status := checkInt(L, 2, "StatusUpdate")
	return result(b, L, "StatusUpdate", b.client.StatusUpdate(apclient.ClientStatus(status)))
}

// luaLocationChecks also brings the mirrors up to date once the client accepted the checks.
func luaLocationChecks(b *Bridge, L *lua.LState) int {
	const cmd = "LocationChecks"
	locations := checkInt64List(L, 2, cmd)
	err := b.client.LocationChecks(locations)
	if err == nil {
		b.mirrors.AppendUnique(CheckedLocations, locations)
		b.mirrors.Resync(MissingLocations, b.client.MissingLocations())
	}
	return result(b, L, cmd, err)
}

// luaLocationScouts: LocationScouts(locations, [create_as_hint])
func luaLocationScouts(b *Bridge, L *lua.LState) int {
	const cmd = "LocationScouts"
	locations := checkInt64List(L, 2, cmd)
	mode := optHintMode(L, 3, cmd)
	return result(b, L, cmd, b.client.LocationScouts(locations, mode))
}

// luaGet: Get(keys, [extras])
func luaGet(b *Bridge, L *lua.LState) int {
	const cmd = "Get"
	keys := checkStringList(L, 2, cmd)
	extras := optObject(L, 3, cmd)
	return result(b, L, cmd, b.client.Get(keys, extras))
}

// luaSet: Set(key, default, want_reply, operations, [extras])
func luaSet(b *Bridge, L *lua.LState) int {
	const cmd = "Set"
	key := checkString(L, 2, cmd)
	dflt := LuaToGo(checkAny(L, 3, cmd, "value"))
	wantReply := checkBool(L, 4, cmd)
	operations := checkOperations(L, 5, cmd)
	extras := optObject(L, 6, cmd)
	return result(b, L, cmd, b.client.Set(key, dflt, wantReply, operations, extras))
}

func luaSetNotify(b *Bridge, L *lua.LState) int {
	keys := checkStringList(L, 2, "SetNotify")
	return result(b, L, "SetNotify", b.client.SetNotify(keys))
}

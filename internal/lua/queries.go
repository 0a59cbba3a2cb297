package lua

import (
	"errors"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

// invalidMessage replaces a render the client could not produce.
const invalidMessage = "<invalid message>"

func queryMethods() map[string]method {
	return map[string]method{
		"get_state":             getNumber(func(c Client) float64 { return float64(c.State()) }),
		"get_seed":              getString(Client.Seed),
		"get_slot":              getString(Client.SlotName),
		"get_game":              getString(Client.Game),
		"get_player_number":     getNumber(func(c Client) float64 { return float64(c.PlayerNumber()) }),
		"get_team_number":       getNumber(func(c Client) float64 { return float64(c.TeamNumber()) }),
		"get_hint_points":       getNumber(func(c Client) float64 { return float64(c.HintPoints()) }),
		"get_hint_cost_points":  getNumber(func(c Client) float64 { return float64(c.HintCostPoints()) }),
		"get_hint_cost_percent": getNumber(func(c Client) float64 { return float64(c.HintCostPercent()) }),
		"get_server_time":       getNumber(Client.ServerTime),
		"is_data_package_valid": func(b *Bridge, L *lua.LState) int {
			L.Push(lua.LBool(b.client.IsDataPackageValid()))
			return 1
		},
		"get_players": func(b *Bridge, L *lua.LState) int {
			L.Push(GoToLua(L, b.client.Players()))
			return 1
		},
		"get_player_alias":  luaGetPlayerAlias,
		"get_player_game":   luaGetPlayerGame,
		"get_location_name": luaGetLocationName,
		"get_location_id":   luaGetLocationID,
		"get_item_name":     luaGetItemName,
		"get_item_id":       luaGetItemID,
		"render_json":       luaRenderJSON,
	}
}

func getString(get func(Client) string) method {
	return func(b *Bridge, L *lua.LState) int {
		L.Push(lua.LString(get(b.client)))
		return 1
	}
}

func getNumber(get func(Client) float64) method {
	return func(b *Bridge, L *lua.LState) int {
		L.Push(lua.LNumber(get(b.client)))
		return 1
	}
}

func luaGetPlayerAlias(b *Bridge, L *lua.LState) int {
	slot := checkInt(L, 2, "get_player_alias")
	L.Push(lua.LString(b.client.PlayerAlias(slot)))
	return 1
}

func luaGetPlayerGame(b *Bridge, L *lua.LState) int {
	slot := checkInt(L, 2, "get_player_game")
	L.Push(lua.LString(b.client.PlayerGame(slot)))
	return 1
}

// luaGetLocationName: get_location_name(id, game|nil). The game must be passed;
// nil searches every game.
func luaGetLocationName(b *Bridge, L *lua.LState) int {
	const cmd = "get_location_name"
	id := checkInt64(L, 2, cmd)
	checkAny(L, 3, cmd, "string or nil")
	game := optString(L, 3, cmd, "")
	L.Push(lua.LString(b.client.LocationName(id, game)))
	return 1
}

func luaGetLocationID(b *Bridge, L *lua.LState) int {
	name := checkString(L, 2, "get_location_id")
	L.Push(Int64ToLua(b.client.LocationID(name)))
	return 1
}

func luaGetItemName(b *Bridge, L *lua.LState) int {
	const cmd = "get_item_name"
	id := checkInt64(L, 2, cmd)
	checkAny(L, 3, cmd, "string or nil")
	game := optString(L, 3, cmd, "")
	L.Push(lua.LString(b.client.ItemName(id, game)))
	return 1
}

func luaGetItemID(b *Bridge, L *lua.LState) int {
	name := checkString(L, 2, "get_item_id")
	L.Push(Int64ToLua(b.client.ItemID(name)))
	return 1
}

// luaRenderJSON: render_json(nodes, [format])
func luaRenderJSON(b *Bridge, L *lua.LState) int {
	const cmd = "render_json"
	nodes := checkTextNodes(L, 2, cmd)
	format := apclient.RenderText
	if !absent(L, 3) {
		f := checkInt(L, 3, cmd)
		if f < int(apclient.RenderText) || f > int(apclient.RenderANSI) {
			argError(L, 3, cmd, "render format")
		}
		format = apclient.RenderFormat(f)
	}
	text, err := b.client.Render(nodes, format)
	switch {
	case errors.Is(err, apclient.ErrUnrenderable):
		b.Log(1, "lua: render_json: %v", err)
		text = invalidMessage
	case err != nil:
		raise(L, err)
	}
	L.Push(lua.LString(text))
	return 1
}

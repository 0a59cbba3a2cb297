package lua

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

// gopher-lua numbers are float64, so ids are exact up to 2^53. Larger ids lose
// their low bits on the way into Lua; on the way back out, values past the
// int64 range saturate so math.MaxInt64 and math.MinInt64 still round-trip.

const twoTo63 = float64(1 << 63)

// emptyArray marks a value that must encode as [] rather than {}.
type emptyArray struct{}

// Int64ToLua converts an id to a Lua number.
func Int64ToLua(n int64) lua.LNumber {
	return lua.LNumber(float64(n))
}

// LuaToInt64 converts an integral Lua number to an id.
func LuaToInt64(n lua.LNumber) (int64, bool) {
	f := float64(n)
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	switch {
	case f >= twoTo63:
		return math.MaxInt64, true
	case f < -twoTo63:
		return math.MinInt64, true
	}
	return int64(f), true
}

// GoToLua converts a decoded JSON value (or one of the apclient payload types) to Lua.
func GoToLua(L *lua.LState, val any) lua.LValue {
	switch v := val.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(float64(v))
	case int64:
		return Int64ToLua(v)
	case float64:
		return lua.LNumber(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int64ToLua(i)
		}
		f, err := v.Float64()
		if err != nil {
			return lua.LString(v.String())
		}
		return lua.LNumber(f)
	case string:
		return lua.LString(v)
	case []string:
		tbl := L.CreateTable(len(v), 0)
		for i, s := range v {
			tbl.RawSetInt(i+1, lua.LString(s))
		}
		return tbl
	case []int64:
		return int64List(L, v)
	case []any:
		tbl := L.CreateTable(len(v), 0)
		for i, item := range v {
			tbl.RawSetInt(i+1, GoToLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(v))
		for k, item := range v {
			tbl.RawSetString(k, GoToLua(L, item))
		}
		return tbl
	case []apclient.NetworkItem:
		tbl := L.CreateTable(len(v), 0)
		for i, item := range v {
			tbl.RawSetInt(i+1, networkItemToLua(L, item))
		}
		return tbl
	case []apclient.Player:
		tbl := L.CreateTable(len(v), 0)
		for i, p := range v {
			entry := L.CreateTable(0, 4)
			entry.RawSetString("team", lua.LNumber(p.Team))
			entry.RawSetString("slot", lua.LNumber(p.Slot))
			entry.RawSetString("alias", lua.LString(p.Alias))
			entry.RawSetString("name", lua.LString(p.Name))
			tbl.RawSetInt(i+1, entry)
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

func networkItemToLua(L *lua.LState, item apclient.NetworkItem) *lua.LTable {
	tbl := L.CreateTable(0, 5)
	tbl.RawSetString("item", Int64ToLua(item.Item))
	tbl.RawSetString("location", Int64ToLua(item.Location))
	tbl.RawSetString("player", lua.LNumber(item.Player))
	tbl.RawSetString("flags", lua.LNumber(item.Flags))
	tbl.RawSetString("index", lua.LNumber(item.Index))
	return tbl
}

func int64List(L *lua.LState, ids []int64) *lua.LTable {
	tbl := L.CreateTable(len(ids), 0)
	for i, id := range ids {
		tbl.RawSetInt(i+1, Int64ToLua(id))
	}
	return tbl
}

func sortedKeyList(L *lua.LState, m map[string]any) *lua.LTable {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return GoToLua(L, keys).(*lua.LTable)
}

// LuaToGo converts a Lua value to something encoding/json can write.
// Integral numbers become int64, sequences become []any, other tables
// become map[string]any. An empty table is an object; EMPTY_ARRAY is [].
func LuaToGo(val lua.LValue) any {
	switch v := val.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		if i, ok := LuaToInt64(v); ok {
			return i
		}
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		if _, ok := v.Value.(emptyArray); ok {
			return []any{}
		}
		return nil
	case *lua.LTable:
		if items, ok := sequence(v); ok && len(items) > 0 {
			arr := make([]any, len(items))
			for i, item := range items {
				arr[i] = LuaToGo(item)
			}
			return arr
		}
		m := make(map[string]any)
		v.ForEach(func(key, value lua.LValue) {
			switch k := key.(type) {
			case lua.LString:
				m[string(k)] = LuaToGo(value)
			case lua.LNumber:
				m[strconv.FormatFloat(float64(k), 'f', -1, 64)] = LuaToGo(value)
			}
		})
		return m
	default:
		return nil
	}
}

// sequence returns the elements 1..n of t when those are its only keys.
func sequence(t *lua.LTable) ([]lua.LValue, bool) {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })
	if count != n {
		return nil, false
	}
	items := make([]lua.LValue, n)
	for i := 1; i <= n; i++ {
		items[i-1] = t.RawGetInt(i)
	}
	return items, true
}

func isEmptyArray(v lua.LValue) bool {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return false
	}
	_, ok = ud.Value.(emptyArray)
	return ok
}

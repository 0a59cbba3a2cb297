package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Mirror slot names, also the Lua field names on a client.
const (
	CheckedLocations = "checked_locations"
	MissingLocations = "missing_locations"
)

func isMirror(name string) bool {
	return name == CheckedLocations || name == MissingLocations
}

// StateMirror keeps the two location tables a script sees in step with the
// client. Scripts may write into the tables or replace them outright, so every
// update goes through whatever value the slot holds at that moment.
type StateMirror struct {
	L     *lua.LState
	slots map[string]lua.LValue
}

// NewStateMirror creates both slots holding empty tables.
func NewStateMirror(L *lua.LState) *StateMirror {
	return &StateMirror{
		L: L,
		slots: map[string]lua.LValue{
			CheckedLocations: L.NewTable(),
			MissingLocations: L.NewTable(),
		},
	}
}

// Get returns the value bound to a slot, or nil.
func (m *StateMirror) Get(name string) lua.LValue {
	if v, ok := m.slots[name]; ok {
		return v
	}
	return lua.LNil
}

// Set binds a slot to v.
func (m *StateMirror) Set(name string, v lua.LValue) {
	m.slots[name] = v
}

// table returns the slot's table, binding a fresh one when the script left a non-table there.
func (m *StateMirror) table(name string) *lua.LTable {
	if t, ok := m.slots[name].(*lua.LTable); ok {
		return t
	}
	t := m.L.NewTable()
	m.slots[name] = t
	return t
}

// Resync makes the slot hold exactly ids at keys 1..len(ids).
func (m *StateMirror) Resync(name string, ids []int64) {
	t := m.table(name)
	for i, id := range ids {
		t.RawSetInt(i+1, Int64ToLua(id))
	}
	var stale []lua.LValue
	n := lua.LNumber(len(ids))
	t.ForEach(func(key, _ lua.LValue) {
		if k, ok := key.(lua.LNumber); ok && k > n {
			if i, ok := LuaToInt64(k); ok && i > 0 {
				stale = append(stale, key)
			}
		}
	})
	for _, key := range stale {
		t.RawSet(key, lua.LNil)
	}
}

// AppendUnique appends the ids not yet present, keeping first occurrence order.
func (m *StateMirror) AppendUnique(name string, ids []int64) {
	t := m.table(name)
	seen := make(map[lua.LNumber]bool)
	t.ForEach(func(_, value lua.LValue) {
		if n, ok := value.(lua.LNumber); ok {
			seen[n] = true
		}
	})
	next := t.Len() + 1
	for _, id := range ids {
		v := Int64ToLua(id)
		if seen[v] {
			continue
		}
		seen[v] = true
		t.RawSetInt(next, v)
		next++
	}
}

// Release unbinds both slots.
func (m *StateMirror) Release() {
	clear(m.slots)
}

package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Handle refers to one callable stored in a HandleTable. The zero Handle is unset.
type Handle struct {
	id int
}

// IsSet reports whether the handle refers to a live entry.
func (h Handle) IsSet() bool {
	return h.id != 0
}

// HandleTable keeps Lua callables alive between calls from Go.
// Entries live in a table owned by the Lua state so the collector sees them.
type HandleTable struct {
	L     *lua.LState
	store *lua.LTable
	next  int
	live  int
}

// NewHandleTable creates an empty table bound to L.
func NewHandleTable(L *lua.LState) *HandleTable {
	return &HandleTable{L: L, store: L.NewTable()}
}

// Store creates a new entry for fn. Ids are never reused.
func (t *HandleTable) Store(fn lua.LValue) Handle {
	t.next++
	t.store.RawSetInt(t.next, fn)
	t.live++
	return Handle{id: t.next}
}

// Release drops the entry behind h and clears h. Releasing an unset handle does nothing.
func (t *HandleTable) Release(h *Handle) {
	if !h.IsSet() {
		return
	}
	t.store.RawSetInt(h.id, lua.LNil)
	t.live--
	h.id = 0
}

// Replace releases the old entry of h before storing fn in it.
func (t *HandleTable) Replace(h *Handle, fn lua.LValue) {
	t.Release(h)
	*h = t.Store(fn)
}

// Live returns the number of entries not yet released.
func (t *HandleTable) Live() int {
	return t.live
}

// Invoke calls the entry behind h in protected mode.
// Errors raised by the callable come back as *lua.ApiError.
func (t *HandleTable) Invoke(h Handle, args ...lua.LValue) error {
	if !h.IsSet() {
		return nil
	}
	fn := t.store.RawGetInt(h.id)
	return t.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
}

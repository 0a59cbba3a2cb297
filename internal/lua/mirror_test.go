package lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	lua "github.com/yuin/gopher-lua"
)

func TestResyncClearsStaleKeys(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	m := NewStateMirror(L)

	m.Resync(CheckedLocations, []int64{3, 1, 2})
	assert.Equal(t, []int64{3, 1, 2}, tableInts(t, m.Get(CheckedLocations)))

	m.Resync(CheckedLocations, []int64{1})
	tbl := m.Get(CheckedLocations).(*lua.LTable)
	assert.Equal(t, lua.LNumber(1), tbl.RawGetInt(1))
	assert.Equal(t, lua.LNil, tbl.RawGetInt(2))
	assert.Equal(t, lua.LNil, tbl.RawGetInt(3))
	entries := 0
	tbl.ForEach(func(_, _ lua.LValue) { entries++ })
	assert.Equal(t, 1, entries)
}

func TestResyncKeepsNonPositionalKeys(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	m := NewStateMirror(L)
	tbl := m.Get(MissingLocations).(*lua.LTable)
	tbl.RawSetString("note", lua.LString("script data"))
	tbl.RawSetInt(10, lua.LNumber(10))

	m.Resync(MissingLocations, []int64{4, 5})
	assert.Equal(t, []int64{4, 5}, tableInts(t, tbl))
	assert.Equal(t, lua.LNil, tbl.RawGetInt(10))
	assert.Equal(t, lua.LString("script data"), tbl.RawGetString("note"))
}

func TestAppendUnique(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	m := NewStateMirror(L)

	m.AppendUnique(CheckedLocations, []int64{5, 5, 6})
	assert.Equal(t, []int64{5, 6}, tableInts(t, m.Get(CheckedLocations)))

	m.AppendUnique(CheckedLocations, []int64{6, 1, 5})
	assert.Equal(t, []int64{5, 6, 1}, tableInts(t, m.Get(CheckedLocations)))
}

func TestMirrorSlotReplacement(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	m := NewStateMirror(L)

	own := L.NewTable()
	own.RawSetInt(1, lua.LNumber(99))
	m.Set(CheckedLocations, own)
	m.AppendUnique(CheckedLocations, []int64{1})
	assert.Equal(t, []int64{99, 1}, tableInts(t, own))

	m.Set(MissingLocations, lua.LString("not a table"))
	m.Resync(MissingLocations, []int64{2})
	assert.Equal(t, []int64{2}, tableInts(t, m.Get(MissingLocations)))

	m.Release()
	assert.Equal(t, lua.LNil, m.Get(CheckedLocations))
}

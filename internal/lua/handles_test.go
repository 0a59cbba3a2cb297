package lua

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestHandleTableLifecycle(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString(`
		count = 0
		function bump(n) count = count + n end
		function fail() error("handler failed") end
	`))
	tbl := NewHandleTable(L)

	var unset Handle
	assert.False(t, unset.IsSet())
	tbl.Release(&unset)
	assert.Equal(t, 0, tbl.Live())

	h := tbl.Store(L.GetGlobal("bump"))
	assert.True(t, h.IsSet())
	assert.Equal(t, 1, tbl.Live())
	require.NoError(t, tbl.Invoke(h, lua.LNumber(2)))
	assert.Equal(t, lua.LNumber(2), L.GetGlobal("count"))

	old := h
	tbl.Replace(&h, L.GetGlobal("fail"))
	assert.NotEqual(t, old, h, "a new entry is created")
	assert.Equal(t, 1, tbl.Live())
	assert.Equal(t, lua.LNil, tbl.store.RawGetInt(old.id))

	err := tbl.Invoke(h)
	require.Error(t, err)
	assert.Contains(t, MessageOnly(err), "handler failed")

	tbl.Release(&h)
	assert.False(t, h.IsSet())
	assert.Equal(t, 0, tbl.Live())
	tbl.Release(&h)
	assert.Equal(t, 0, tbl.Live(), "releasing a cleared handle is a no-op")
	assert.NoError(t, tbl.Invoke(h))
}

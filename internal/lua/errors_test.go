package lua

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestErrorSinkDrain(t *testing.T) {
	var sink ErrorSink
	assert.NoError(t, sink.Drain())

	sink.Push("first")
	sink.Push("second")
	assert.Equal(t, 2, sink.Len())
	err := sink.Drain()
	require.Error(t, err)
	assert.Equal(t, "first\n---\nsecond", err.Error())
	assert.Equal(t, 0, sink.Len())
	assert.NoError(t, sink.Drain())
}

func TestErrorFormatters(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	err := L.DoString(`error("kaboom")`)
	require.Error(t, err)

	assert.Contains(t, MessageOnly(err), "kaboom")
	assert.NotContains(t, MessageOnly(err), "stack traceback")
	assert.Contains(t, Traceback(err), "kaboom")

	plain := errors.New("plain")
	assert.Equal(t, "plain", Traceback(plain))
	assert.Equal(t, "plain", MessageOnly(plain))
}

func TestArgErrorMessage(t *testing.T) {
	err := &ArgError{Pos: 2, Command: "SetNotify", Expected: "array of strings", Got: "string"}
	assert.Equal(t, "bad argument #2 to 'SetNotify' (array of strings expected, got string)", err.Error())
}

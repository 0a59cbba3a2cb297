package lua

import (
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

// ArgError reports an argument of the wrong shape. Pos is 1-based and counts self.
type ArgError struct {
	Pos      int
	Command  string
	Expected string
	Got      string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("bad argument #%d to '%s' (%s expected, got %s)", e.Pos, e.Command, e.Expected, e.Got)
}

func argError(L *lua.LState, pos int, command, expected string) {
	got := "no value"
	if pos <= L.GetTop() {
		got = luaTypeName(L.Get(pos))
	}
	err := &ArgError{Pos: pos, Command: command, Expected: expected, Got: got}
	L.RaiseError("%s", err.Error())
}

func luaTypeName(v lua.LValue) string {
	if isEmptyArray(v) {
		return "EMPTY_ARRAY"
	}
	return v.Type().String()
}

func absent(L *lua.LState, pos int) bool {
	return L.Get(pos) == lua.LNil
}

// checkAny requires an argument at pos. An explicit nil counts as present.
func checkAny(L *lua.LState, pos int, command, expected string) lua.LValue {
	if L.GetTop() < pos {
		argError(L, pos, command, expected)
	}
	return L.Get(pos)
}

func checkString(L *lua.LState, pos int, command string) string {
	if s, ok := L.Get(pos).(lua.LString); ok {
		return string(s)
	}
	argError(L, pos, command, "string")
	return ""
}

func optString(L *lua.LState, pos int, command, dflt string) string {
	if absent(L, pos) {
		return dflt
	}
	return checkString(L, pos, command)
}

func checkInt(L *lua.LState, pos int, command string) int {
	if n, ok := L.Get(pos).(lua.LNumber); ok {
		if i, ok := LuaToInt64(n); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return int(i)
		}
	}
	argError(L, pos, command, "integer")
	return 0
}

func checkInt64(L *lua.LState, pos int, command string) int64 {
	if n, ok := L.Get(pos).(lua.LNumber); ok {
		if i, ok := LuaToInt64(n); ok {
			return i
		}
	}
	argError(L, pos, command, "integer")
	return 0
}

func checkBool(L *lua.LState, pos int, command string) bool {
	if b, ok := L.Get(pos).(lua.LBool); ok {
		return bool(b)
	}
	argError(L, pos, command, "boolean")
	return false
}

// listArg returns the elements of a sequence argument. EMPTY_ARRAY is an empty list.
func listArg(L *lua.LState, pos int) ([]lua.LValue, bool) {
	v := L.Get(pos)
	if isEmptyArray(v) {
		return nil, true
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, false
	}
	return sequence(t)
}

func checkInt64List(L *lua.LState, pos int, command string) []int64 {
	const expected = "array of int64"
	items, ok := listArg(L, pos)
	if !ok {
		argError(L, pos, command, expected)
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, isNum := item.(lua.LNumber)
		if !isNum {
			argError(L, pos, command, expected)
		}
		id, ok := LuaToInt64(n)
		if !ok {
			argError(L, pos, command, expected)
		}
		out = append(out, id)
	}
	return out
}

func checkStringList(L *lua.LState, pos int, command string) []string {
	const expected = "array of strings"
	items, ok := listArg(L, pos)
	if !ok {
		argError(L, pos, command, expected)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(lua.LString)
		if !ok {
			argError(L, pos, command, expected)
		}
		out = append(out, string(s))
	}
	return out
}

// optStringList returns nil for an absent argument.
func optStringList(L *lua.LState, pos int, command string) []string {
	if absent(L, pos) {
		return nil
	}
	return checkStringList(L, pos, command)
}

func optInt32List(L *lua.LState, pos int, command string) []int {
	const expected = "array of int32"
	if absent(L, pos) {
		return nil
	}
	items, ok := listArg(L, pos)
	if !ok {
		argError(L, pos, command, expected)
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, isNum := item.(lua.LNumber)
		if !isNum {
			argError(L, pos, command, expected)
		}
		i, ok := LuaToInt64(n)
		if !ok || i < math.MinInt32 || i > math.MaxInt32 {
			argError(L, pos, command, expected)
		}
		out = append(out, int(i))
	}
	return out
}

// optVersion accepts {major=, minor=, build=} or {major, minor, build}.
// Missing fields are 0 and other keys, such as the protocol's class marker,
// are ignored. Every field must be an integer. The zero version reads as "not given".
func optVersion(L *lua.LState, pos int, command string) *apclient.Version {
	const expected = "version table or nil"
	if absent(L, pos) {
		return nil
	}
	t, ok := L.Get(pos).(*lua.LTable)
	if !ok {
		argError(L, pos, command, expected)
	}
	var v apclient.Version
	if items, isSeq := sequence(t); isSeq && len(items) > 0 {
		if len(items) > 3 {
			argError(L, pos, command, expected)
		}
		fields := []*int{&v.Major, &v.Minor, &v.Build}
		for i, item := range items {
			n, isNum := item.(lua.LNumber)
			if !isNum {
				argError(L, pos, command, expected)
			}
			i64, ok := LuaToInt64(n)
			if !ok || i64 < math.MinInt32 || i64 > math.MaxInt32 {
				argError(L, pos, command, expected)
			}
			*fields[i] = int(i64)
		}
	} else if err := decodeVersion(LuaToGo(t), &v); err != nil {
		argError(L, pos, command, expected)
	}
	if v.IsZero() {
		return nil
	}
	return &v
}

// optHintMode maps false/true to HintNone/HintAll and accepts 0..2 directly.
func optHintMode(L *lua.LState, pos int, command string) apclient.HintMode {
	const expected = "boolean or hint mode"
	switch v := L.Get(pos).(type) {
	case *lua.LNilType:
		return apclient.HintNone
	case lua.LBool:
		if v {
			return apclient.HintAll
		}
		return apclient.HintNone
	case lua.LNumber:
		if i, ok := LuaToInt64(v); ok && i >= int64(apclient.HintNone) && i <= int64(apclient.HintNew) {
			return apclient.HintMode(i)
		}
	}
	argError(L, pos, command, expected)
	return apclient.HintNone
}

// checkOperations reads a non-empty list of [op, value] pairs or
// {operation=, value=} tables. Any bad entry reports the list position.
func checkOperations(L *lua.LState, pos int, command string) []apclient.DataStorageOperation {
	const expected = "array of operations"
	items, ok := listArg(L, pos)
	if !ok || len(items) == 0 {
		argError(L, pos, command, expected)
	}
	out := make([]apclient.DataStorageOperation, 0, len(items))
	for _, item := range items {
		t, ok := item.(*lua.LTable)
		if !ok {
			argError(L, pos, command, expected)
		}
		var op apclient.DataStorageOperation
		if pair, isSeq := sequence(t); isSeq && len(pair) > 0 {
			name, isStr := pair[0].(lua.LString)
			if len(pair) != 2 || !isStr {
				argError(L, pos, command, expected)
			}
			op.Operation = string(name)
			op.Value = LuaToGo(pair[1])
		} else if err := decodeStrict(LuaToGo(t), &op); err != nil {
			argError(L, pos, command, expected)
		}
		if op.Operation == "" {
			argError(L, pos, command, expected)
		}
		out = append(out, op)
	}
	return out
}

// optObject reads a table of extra packet fields.
func optObject(L *lua.LState, pos int, command string) map[string]any {
	const expected = "table or nil"
	if absent(L, pos) {
		return nil
	}
	t, ok := L.Get(pos).(*lua.LTable)
	if !ok {
		argError(L, pos, command, expected)
	}
	m, ok := LuaToGo(t).(map[string]any)
	if !ok {
		argError(L, pos, command, expected)
	}
	return m
}

// checkTextNodes reads a list of PrintJSON nodes.
func checkTextNodes(L *lua.LState, pos int, command string) []apclient.TextNode {
	const expected = "array of text nodes"
	items, ok := listArg(L, pos)
	if !ok {
		argError(L, pos, command, expected)
	}
	out := make([]apclient.TextNode, 0, len(items))
	for _, item := range items {
		t, ok := item.(*lua.LTable)
		if !ok {
			argError(L, pos, command, expected)
		}
		var node apclient.TextNode
		if err := decodeWeak(LuaToGo(t), &node); err != nil {
			argError(L, pos, command, expected)
		}
		out = append(out, node)
	}
	return out
}

func decodeStrict(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// decodeVersion ignores unknown keys but refuses fractional numbers,
// which LuaToGo leaves as float64.
func decodeVersion(input any, out *apclient.Version) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: out,
		DecodeHook: func(from, to reflect.Type, data any) (any, error) {
			if from.Kind() == reflect.Float64 && to.Kind() == reflect.Int {
				return nil, fmt.Errorf("%v is not an integer", data)
			}
			return data, nil
		},
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// decodeWeak lets numeric text such as an id pass as a string.
func decodeWeak(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

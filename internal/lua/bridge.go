package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/config"
)

// typeName is the metatable name of client userdata.
const typeName = "APClient"

// Bridge binds one Client to the Lua state that created it.
// Every entry point checks that it runs on that state; the bridge is not
// safe for use from other goroutines or coroutines.
type Bridge struct {
	L      *lua.LState
	client Client
	config *config.Config
	format ErrorFormatter

	handles   *HandleTable
	handlers  [numEvents]Handle
	installed [numEvents]bool
	mirrors   *StateMirror
	errs      ErrorSink
	polling   bool
	closed    bool

	methods *lua.LTable
	ud      *lua.LUserData
}

// NewBridge wraps client for L. The mirror trampolines are installed right
// away so the location tables stay current without any handler registered.
func NewBridge(L *lua.LState, client Client, opts Options) *Bridge {
	b := &Bridge{
		L:       L,
		client:  client,
		config:  opts.Config,
		format:  opts.FormatError,
		handles: NewHandleTable(L),
		mirrors: NewStateMirror(L),
	}
	if b.format == nil {
		b.format = Traceback
	}
	b.install(EventSlotConnected)
	b.install(EventLocationChecked)
	return b
}

// Log logs a message via the config.
func (b *Bridge) Log(level int, format string, args ...any) {
	b.config.Log(level, format, args...)
}

// Client returns the wrapped client.
func (b *Bridge) Client() Client {
	return b.client
}

// Mirrors returns the location mirror.
func (b *Bridge) Mirrors() *StateMirror {
	return b.mirrors
}

// Handles returns the handle table.
func (b *Bridge) Handles() *HandleTable {
	return b.handles
}

// Closed reports whether Close has run.
func (b *Bridge) Closed() bool {
	return b.closed
}

// check enforces single-state ownership. It runs before anything else is touched.
func (b *Bridge) check(L *lua.LState) error {
	if L != b.L {
		return ErrWrongState
	}
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Poll lets the client process pending work. Handlers fire from inside this
// call; their failures, and a failure of the client itself, come back as one error.
// A handler may not poll its own client: the nested call fails with ErrNestedPoll
// and that failure joins the errors of the running cycle.
func (b *Bridge) Poll(L *lua.LState) error {
	if err := b.check(L); err != nil {
		return err
	}
	if b.polling {
		return ErrNestedPoll
	}
	b.polling = true
	defer func() { b.polling = false }()
	b.errs.Reset()
	if err := b.pollClient(); err != nil {
		b.Log(0, "lua: poll: %v", err)
		b.errs.Push(err.Error())
	}
	return b.errs.Drain()
}

func (b *Bridge) pollClient() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("client panicked: %v", r)
		}
	}()
	return b.client.Poll()
}

// Close detaches every trampoline, releases all handles and mirror slots, and
// only then closes the client. It is safe to call more than once.
func (b *Bridge) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.detachAll()
	for kind := range b.handlers {
		b.handles.Release(&b.handlers[kind])
	}
	b.mirrors.Release()
	b.errs.Reset()
	return b.client.Close()
}

// Value returns the userdata scripts see for this bridge.
func (b *Bridge) Value() *lua.LUserData {
	return b.ud
}

func (b *Bridge) push(L *lua.LState, methods *lua.LTable) *lua.LUserData {
	b.methods = methods
	b.ud = L.NewUserData()
	b.ud.Value = b
	L.SetMetatable(b.ud, L.GetTypeMetatable(typeName))
	return b.ud
}

func raise(L *lua.LState, err error) {
	L.RaiseError("%s", err.Error())
}

func toBridge(L *lua.LState, command string) *Bridge {
	if ud, ok := L.Get(1).(*lua.LUserData); ok {
		if b, ok := ud.Value.(*Bridge); ok {
			return b
		}
	}
	argError(L, 1, command, typeName)
	return nil
}

// registerClientType creates the userdata metatable and returns the method table.
func registerClientType(L *lua.LState) *lua.LTable {
	methods := L.NewTable()
	for name, fn := range clientMethods() {
		L.SetField(methods, name, L.NewFunction(wrapMethod(name, fn)))
	}
	mt := L.NewTypeMetatable(typeName)
	L.SetFuncs(mt, map[string]lua.LGFunction{
		"__index":    clientIndex,
		"__newindex": clientNewIndex,
		"__tostring": clientToString,
	})
	return methods
}

// method is a client method body; the bridge has already passed its checks.
type method func(b *Bridge, L *lua.LState) int

func wrapMethod(name string, fn method) lua.LGFunction {
	return func(L *lua.LState) int {
		b := toBridge(L, name)
		if name == "close" && b.closed && L == b.L {
			return 0
		}
		if err := b.check(L); err != nil {
			raise(L, err)
		}
		return fn(b, L)
	}
}

func clientIndex(L *lua.LState) int {
	b := toBridge(L, "__index")
	key, ok := L.Get(2).(lua.LString)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	if isMirror(string(key)) {
		if L != b.L {
			raise(L, ErrWrongState)
		}
		L.Push(b.mirrors.Get(string(key)))
		return 1
	}
	L.Push(b.methods.RawGetString(string(key)))
	return 1
}

func clientNewIndex(L *lua.LState) int {
	b := toBridge(L, "__newindex")
	key := checkString(L, 2, "__newindex")
	if !isMirror(key) {
		L.RaiseError("cannot set field '%s' on %s", key, typeName)
	}
	if err := b.check(L); err != nil {
		raise(L, err)
	}
	b.mirrors.Set(key, L.Get(3))
	return 0
}

func clientToString(L *lua.LState) int {
	b := toBridge(L, "__tostring")
	if b.closed {
		L.Push(lua.LString(typeName + " (closed)"))
		return 1
	}
	L.Push(lua.LString(fmt.Sprintf("%s (%s)", typeName, b.client.Game())))
	return 1
}

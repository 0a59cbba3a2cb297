package lua

import (
	"errors"
	"slices"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
	"github.com/zot/aplua/internal/config"
)

// ModuleName is the name scripts require.
const ModuleName = "apclientpp"

// ModuleVersion is exposed to scripts as APClient._VERSION.
const ModuleVersion = "0.1.0"

// ClientFactory creates the protocol client behind a new bridge.
type ClientFactory func(uuid, game, uri string) Client

// Options configure a Module and the bridges it creates.
type Options struct {
	Config      *config.Config
	NewClient   ClientFactory  // defaults to apclient.New
	FormatError ErrorFormatter // defaults to Traceback
}

// Module tracks the clients created through one loaded copy of the module,
// so they can all be torn down before their Lua state goes away.
type Module struct {
	opts    Options
	bridges []*Bridge
}

// NewModule creates a Module.
func NewModule(opts Options) *Module {
	if opts.NewClient == nil {
		cfg := opts.Config
		opts.NewClient = func(uuid, game, uri string) Client {
			return apclient.New(uuid, game, uri, apclient.WithLogger(cfg))
		}
	}
	return &Module{opts: opts}
}

// Preload makes require(ModuleName) return the client class in L.
func (m *Module) Preload(L *lua.LState) {
	L.PreloadModule(ModuleName, m.Loader)
}

// Loader builds the client class table.
func (m *Module) Loader(L *lua.LState) int {
	methods := registerClientType(L)
	newClient := func(L *lua.LState) int {
		return m.newClient(L, methods)
	}

	class := L.NewTable()
	L.SetField(class, "new", L.NewFunction(newClient))
	class.RawSetString("_VERSION", lua.LString(ModuleVersion))
	registerEnums(L, class)

	mt := L.NewTable()
	L.SetField(mt, "__call", L.NewFunction(func(L *lua.LState) int {
		L.Remove(1) // the class itself
		return newClient(L)
	}))
	L.SetMetatable(class, mt)

	L.Push(class)
	return 1
}

// newClient: APClient(uuid, game, [uri]). Missing values fall back to the config.
func (m *Module) newClient(L *lua.LState, methods *lua.LTable) int {
	const cmd = "APClient"
	var defaults config.ClientConfig
	if m.opts.Config != nil {
		defaults = m.opts.Config.Client
	}
	if defaults.URI == "" {
		defaults.URI = apclient.DefaultURI
	}
	uuid := optString(L, 1, cmd, defaults.UUID)
	game := optString(L, 2, cmd, defaults.Game)
	uri := optString(L, 3, cmd, defaults.URI)

	b := NewBridge(L, m.opts.NewClient(uuid, game, uri), m.opts)
	m.bridges = append(m.bridges, b)
	m.opts.Config.Log(1, "lua: new client game=%q uri=%s", game, uri)
	L.Push(b.push(L, methods))
	return 1
}

// Bridges returns the clients that are still open.
func (m *Module) Bridges() []*Bridge {
	m.bridges = slices.DeleteFunc(m.bridges, (*Bridge).Closed)
	return slices.Clone(m.bridges)
}

// Close closes every open client.
func (m *Module) Close() error {
	var errs []error
	for _, b := range m.bridges {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.bridges = nil
	return errors.Join(errs...)
}

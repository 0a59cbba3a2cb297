package lua

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

// fakeClient records commands and lets tests fire events from inside Poll.
type fakeClient struct {
	uuid, game, uri string

	polls   int
	onPoll  func(c *fakeClient)
	pollErr error
	closed  bool
	resets  int
	sendErr error

	checked []int64
	missing []int64

	socketConnected    func()
	socketError        func(string)
	socketDisconnected func()
	roomInfo           func()
	slotConnected      func(any)
	slotRefused        func([]string)
	itemsReceived      func([]apclient.NetworkItem)
	locationInfo       func([]apclient.NetworkItem)
	locationChecked    func([]int64)
	dataPackageChanged func(any)
	print              func(string)
	printJSON          func(map[string]any)
	bounced            func(map[string]any)
	retrieved          func(map[string]any, map[string]any)
	setReply           func(map[string]any)

	said          []string
	connectSlot   *connectSlotCall
	connectUpdate *connectUpdateCall
	bounce        *bounceCall
	status        apclient.ClientStatus
	locChecks     [][]int64
	scouts        []scoutCall
	getKeys       []string
	getExtras     map[string]any
	set           *setCall
	setNotifyKeys []string
	renderErr     error
}

type connectSlotCall struct {
	name, password string
	itemsHandling  int
	tags           []string
	version        *apclient.Version
}

type connectUpdateCall struct {
	itemsHandling *int
	tags          []string
}

type bounceCall struct {
	data  any
	games []string
	slots []int
	tags  []string
}

type scoutCall struct {
	locations []int64
	mode      apclient.HintMode
}

type setCall struct {
	key        string
	dflt       any
	wantReply  bool
	operations []apclient.DataStorageOperation
	extras     map[string]any
}

func (c *fakeClient) Poll() error {
	c.polls++
	if c.onPoll != nil {
		c.onPoll(c)
	}
	return c.pollErr
}

func (c *fakeClient) Reset() { c.resets++ }
func (c *fakeClient) Close() error { c.closed = true; return nil }

func (c *fakeClient) SetSocketConnectedHandler(fn func()) { c.socketConnected = fn }
func (c *fakeClient) SetSocketErrorHandler(fn func(string)) { c.socketError = fn }
func (c *fakeClient) SetSocketDisconnectedHandler(fn func()) { c.socketDisconnected = fn }
func (c *fakeClient) SetRoomInfoHandler(fn func()) { c.roomInfo = fn }
func (c *fakeClient) SetSlotConnectedHandler(fn func(any)) { c.slotConnected = fn }
func (c *fakeClient) SetSlotRefusedHandler(fn func([]string)) { c.slotRefused = fn }
func (c *fakeClient) SetLocationCheckedHandler(fn func([]int64)) { c.locationChecked = fn }
func (c *fakeClient) SetDataPackageChangedHandler(fn func(any)) { c.dataPackageChanged = fn }
func (c *fakeClient) SetPrintHandler(fn func(string)) { c.print = fn }
func (c *fakeClient) SetPrintJSONHandler(fn func(map[string]any)) { c.printJSON = fn }
func (c *fakeClient) SetBouncedHandler(fn func(map[string]any)) { c.bounced = fn }
func (c *fakeClient) SetSetReplyHandler(fn func(map[string]any)) { c.setReply = fn }
func (c *fakeClient) SetItemsReceivedHandler(fn func([]apclient.NetworkItem)) {
	c.itemsReceived = fn
}
func (c *fakeClient) SetLocationInfoHandler(fn func([]apclient.NetworkItem)) {
	c.locationInfo = fn
}
func (c *fakeClient) SetRetrievedHandler(fn func(map[string]any, map[string]any)) {
	c.retrieved = fn
}

func (c *fakeClient) ConnectSlot(name, password string, itemsHandling int, tags []string, version *apclient.Version) error {
	c.connectSlot = &connectSlotCall{name, password, itemsHandling, tags, version}
	return c.sendErr
}

func (c *fakeClient) ConnectUpdate(itemsHandling *int, tags []string) error {
	c.connectUpdate = &connectUpdateCall{itemsHandling, tags}
	return c.sendErr
}

func (c *fakeClient) Sync() error { return c.sendErr }

func (c *fakeClient) Bounce(data any, games []string, slots []int, tags []string) error {
	c.bounce = &bounceCall{data, games, slots, tags}
	return c.sendErr
}

func (c *fakeClient) StatusUpdate(status apclient.ClientStatus) error {
	c.status = status
	return c.sendErr
}

func (c *fakeClient) LocationChecks(locations []int64) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.locChecks = append(c.locChecks, locations)
	for _, loc := range locations {
		if !slices.Contains(c.checked, loc) {
			c.checked = append(c.checked, loc)
		}
		c.missing = slices.DeleteFunc(c.missing, func(m int64) bool { return m == loc })
	}
	return nil
}

func (c *fakeClient) LocationScouts(locations []int64, mode apclient.HintMode) error {
	c.scouts = append(c.scouts, scoutCall{locations, mode})
	return c.sendErr
}

func (c *fakeClient) Say(text string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.said = append(c.said, text)
	return nil
}

func (c *fakeClient) Get(keys []string, extras map[string]any) error {
	c.getKeys, c.getExtras = keys, extras
	return c.sendErr
}

func (c *fakeClient) Set(key string, dflt any, wantReply bool, operations []apclient.DataStorageOperation, extras map[string]any) error {
	c.set = &setCall{key, dflt, wantReply, operations, extras}
	return c.sendErr
}

func (c *fakeClient) SetNotify(keys []string) error {
	c.setNotifyKeys = keys
	return c.sendErr
}

func (c *fakeClient) State() apclient.State { return apclient.StateSlotConnected }
func (c *fakeClient) Seed() string { return "seed" }
func (c *fakeClient) SlotName() string { return "Alice" }
func (c *fakeClient) PlayerNumber() int { return 1 }
func (c *fakeClient) TeamNumber() int { return 0 }
func (c *fakeClient) HintPoints() int { return 12 }
func (c *fakeClient) HintCostPoints() int { return 5 }
func (c *fakeClient) HintCostPercent() int { return 10 }
func (c *fakeClient) IsDataPackageValid() bool { return true }
func (c *fakeClient) ServerTime() float64 { return 1700000000 }
func (c *fakeClient) Game() string { return c.game }
func (c *fakeClient) PlayerAlias(slot int) string { return "Alice" }
func (c *fakeClient) PlayerGame(slot int) string { return "Test" }
func (c *fakeClient) ItemID(name string) int64 { return apclient.InvalidID }
func (c *fakeClient) LocationID(name string) int64 { return apclient.InvalidID }
func (c *fakeClient) CheckedLocations() []int64 { return slices.Clone(c.checked) }
func (c *fakeClient) MissingLocations() []int64 { return slices.Clone(c.missing) }

func (c *fakeClient) Players() []apclient.Player {
	return []apclient.Player{{Team: 0, Slot: 1, Alias: "Alice", Name: "Alice"}}
}

func (c *fakeClient) ItemName(id int64, game string) string { return "Unknown" }
func (c *fakeClient) LocationName(id int64, game string) string { return "Unknown" }

func (c *fakeClient) Render(nodes []apclient.TextNode, format apclient.RenderFormat) (string, error) {
	if c.renderErr != nil {
		return "", c.renderErr
	}
	var out string
	for _, n := range nodes {
		out += n.Text
	}
	return out, nil
}

// newTestState creates a Lua state with the module preloaded and a global
// client built on a fake.
func newTestState(t *testing.T) (*lua.LState, *fakeClient, *Module) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	fake := &fakeClient{}
	m := NewModule(Options{
		FormatError: MessageOnly,
		NewClient: func(uuid, game, uri string) Client {
			fake.uuid, fake.game, fake.uri = uuid, game, uri
			return fake
		},
	})
	m.Preload(L)
	run(t, L, `
		APClient = require("apclientpp")
		client = APClient("uuid-1", "Test", "localhost:38281")
	`)
	return L, fake, m
}

func run(t *testing.T, L *lua.LState, code string) {
	t.Helper()
	require.NoError(t, L.DoString(code))
}

// runErr runs code that must fail and returns the error text.
func runErr(t *testing.T, L *lua.LState, code string) string {
	t.Helper()
	err := L.DoString(code)
	require.Error(t, err)
	return err.Error()
}

func global(L *lua.LState, name string) lua.LValue {
	return L.GetGlobal(name)
}

func tableInts(t *testing.T, v lua.LValue) []int64 {
	t.Helper()
	tbl, ok := v.(*lua.LTable)
	require.True(t, ok, "expected table, got %s", v.Type())
	var out []int64
	for i := 1; i <= tbl.Len(); i++ {
		n, ok := tbl.RawGetInt(i).(lua.LNumber)
		require.True(t, ok)
		id, _ := LuaToInt64(n)
		out = append(out, id)
	}
	return out
}

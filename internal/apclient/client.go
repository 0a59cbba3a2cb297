package apclient

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Poll after Close.
var ErrClosed = errors.New("client closed")

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 15 * time.Second
)

// Logger receives diagnostic output. *config.Config satisfies it.
type Logger interface {
	Log(level int, format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Log(int, string, ...any) {}

// Option configures a Client.
type Option func(*Client)

// WithLogger routes client diagnostics to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// frame is one websocket read result.
type frame struct {
	data []byte
	err  error
}

// socket is one live connection and its reader goroutine.
type socket struct {
	conn  *websocket.Conn
	inbox chan frame
	done  chan struct{}
}

func (s *socket) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		select {
		case s.inbox <- frame{data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *socket) close() {
	close(s.done)
	s.conn.Close()
}

type scout struct {
	locations []int64
	mode      HintMode
}

// handlers are the event callbacks. A nil handler is not called.
type handlers struct {
	socketConnected    func()
	socketError        func(string)
	socketDisconnected func()
	roomInfo           func()
	slotConnected      func(any)
	slotRefused        func([]string)
	itemsReceived      func([]NetworkItem)
	locationInfo       func([]NetworkItem)
	locationChecked    func([]int64)
	dataPackageChanged func(any)
	print              func(string)
	printJSON          func(map[string]any)
	bounced            func(map[string]any)
	retrieved          func(map[string]any, map[string]any)
	setReply           func(map[string]any)
}

// Client is a single connection to an Archipelago server.
// It is not safe for concurrent use; drive it from one goroutine.
type Client struct {
	uuid   string
	game   string
	uri    string
	dialer *websocket.Dialer
	log    Logger

	sock           *socket
	state          State
	closed         bool
	reconnectAt    time.Time
	reconnectDelay time.Duration

	// room
	seed            string
	serverTime      float64
	serverTimeAt    time.Time
	hintCostPercent int
	roomGames       []string

	// slot
	slotName   string
	team       int
	slotNumber int
	players    []Player
	slotGames  map[int]string
	hintPoints int
	checked    map[int64]struct{}
	missing    map[int64]struct{}

	pendingChecks []int64
	pendingScouts []scout

	dp *dataPackage
	h  handlers
}

// New creates a client. No connection is made until the first Poll.
func New(uuid, game, uri string, opts ...Option) *Client {
	c := &Client{
		uuid:           uuid,
		game:           game,
		uri:            normalizeURI(uri),
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:            nopLogger{},
		reconnectDelay: minReconnectDelay,
		slotGames:      make(map[int]string),
		checked:        make(map[int64]struct{}),
		missing:        make(map[int64]struct{}),
		dp:             newDataPackage(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func normalizeURI(uri string) string {
	if uri == "" {
		return DefaultURI
	}
	if !strings.Contains(uri, "://") {
		return "ws://" + uri
	}
	return uri
}

// URI returns the server address the client dials.
func (c *Client) URI() string { return c.uri }

// Handler setters. Passing nil detaches the handler.

func (c *Client) SetSocketConnectedHandler(fn func()) { c.h.socketConnected = fn }
func (c *Client) SetSocketErrorHandler(fn func(string)) { c.h.socketError = fn }
func (c *Client) SetSocketDisconnectedHandler(fn func()) { c.h.socketDisconnected = fn }
func (c *Client) SetRoomInfoHandler(fn func()) { c.h.roomInfo = fn }
func (c *Client) SetSlotConnectedHandler(fn func(any)) { c.h.slotConnected = fn }
func (c *Client) SetSlotRefusedHandler(fn func([]string)) { c.h.slotRefused = fn }
func (c *Client) SetItemsReceivedHandler(fn func([]NetworkItem)) { c.h.itemsReceived = fn }
func (c *Client) SetLocationInfoHandler(fn func([]NetworkItem)) { c.h.locationInfo = fn }
func (c *Client) SetLocationCheckedHandler(fn func([]int64)) { c.h.locationChecked = fn }
func (c *Client) SetDataPackageChangedHandler(fn func(any)) { c.h.dataPackageChanged = fn }
func (c *Client) SetPrintHandler(fn func(string)) { c.h.print = fn }
func (c *Client) SetPrintJSONHandler(fn func(map[string]any)) { c.h.printJSON = fn }
func (c *Client) SetBouncedHandler(fn func(map[string]any)) { c.h.bounced = fn }
func (c *Client) SetRetrievedHandler(fn func(map[string]any, map[string]any)) {
	c.h.retrieved = fn
}
func (c *Client) SetSetReplyHandler(fn func(map[string]any)) { c.h.setReply = fn }

// Poll connects if needed and processes every frame received since the last
// call. Handlers fire synchronously from here.
func (c *Client) Poll() error {
	if c.closed {
		return ErrClosed
	}
	if c.sock == nil {
		if time.Now().Before(c.reconnectAt) {
			return nil
		}
		if !c.connectSocket() {
			return nil
		}
	}
	var errs []error
	for c.sock != nil {
		select {
		case f := <-c.sock.inbox:
			if f.err != nil {
				c.disconnected(f.err)
				return errors.Join(errs...)
			}
			if err := c.handleFrame(f.data); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) connectSocket() bool {
	c.state = StateSocketConnecting
	c.log.Log(1, "apclient: connecting to %s", c.uri)
	conn, _, err := c.dialer.Dial(c.uri, nil)
	if err != nil {
		c.state = StateDisconnected
		c.scheduleReconnect()
		c.log.Log(1, "apclient: connect failed: %v", err)
		if c.h.socketError != nil {
			c.h.socketError(err.Error())
		}
		return false
	}
	c.sock = &socket{
		conn:  conn,
		inbox: make(chan frame, 64),
		done:  make(chan struct{}),
	}
	go c.sock.readLoop()
	c.state = StateSocketConnected
	c.reconnectDelay = minReconnectDelay
	c.log.Log(1, "apclient: connected to %s", c.uri)
	if c.h.socketConnected != nil {
		c.h.socketConnected()
	}
	return true
}

func (c *Client) scheduleReconnect() {
	c.reconnectAt = time.Now().Add(c.reconnectDelay)
	c.reconnectDelay = min(c.reconnectDelay*2, maxReconnectDelay)
}

func (c *Client) disconnected(cause error) {
	wasConnected := c.state >= StateSocketConnected
	c.dropSocket()
	c.scheduleReconnect()
	c.log.Log(1, "apclient: disconnected: %v", cause)
	if wasConnected && c.h.socketDisconnected != nil {
		c.h.socketDisconnected()
	}
}

func (c *Client) dropSocket() {
	if c.sock != nil {
		c.sock.close()
		c.sock = nil
	}
	c.state = StateDisconnected
}

// Reset drops the connection and all slot state; the next Poll reconnects.
func (c *Client) Reset() {
	c.dropSocket()
	c.seed = ""
	c.serverTime = 0
	c.serverTimeAt = time.Time{}
	c.hintCostPercent = 0
	c.roomGames = nil
	c.slotName = ""
	c.team = 0
	c.slotNumber = 0
	c.players = nil
	c.slotGames = make(map[int]string)
	c.hintPoints = 0
	c.checked = make(map[int64]struct{})
	c.missing = make(map[int64]struct{})
	c.pendingChecks = nil
	c.pendingScouts = nil
	c.reconnectAt = time.Time{}
	c.reconnectDelay = minReconnectDelay
}

// Close drops the connection for good. No handler fires afterwards.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.h = handlers{}
	c.dropSocket()
	return nil
}

func (c *Client) handleFrame(data []byte) error {
	packets, err := decodeFrame(data)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range packets {
		c.log.Log(2, "apclient: <- %s", p.Cmd)
		if err := c.handlePacket(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) handlePacket(p Packet) error {
	switch p.Cmd {
	case CmdRoomInfo:
		var room roomInfoPacket
		if err := p.decodeInto(&room); err != nil {
			return err
		}
		c.state = StateRoomInfo
		c.seed = room.SeedName
		c.serverTime = room.Time
		c.serverTimeAt = time.Now()
		c.hintCostPercent = room.HintCost
		c.roomGames = room.Games
		if missing := c.missingGames(); len(missing) > 0 {
			if err := c.send(GetDataPackagePacket{Cmd: CmdGetDataPackage, Games: missing}); err != nil {
				return err
			}
		}
		if c.h.roomInfo != nil {
			c.h.roomInfo()
		}
	case CmdConnectionRefused:
		var refused connectionRefusedPacket
		if err := p.decodeInto(&refused); err != nil {
			return err
		}
		if c.h.slotRefused != nil {
			c.h.slotRefused(refused.Errors)
		}
	case CmdConnected:
		var connected connectedPacket
		if err := p.decodeInto(&connected); err != nil {
			return err
		}
		c.onConnected(connected)
		if c.h.slotConnected != nil {
			c.h.slotConnected(p.Raw["slot_data"])
		}
	case CmdReceivedItems:
		var received receivedItemsPacket
		if err := p.decodeInto(&received); err != nil {
			return err
		}
		for i := range received.Items {
			received.Items[i].Index = received.Index + i
		}
		if c.h.itemsReceived != nil {
			c.h.itemsReceived(received.Items)
		}
	case CmdLocationInfo:
		var info locationInfoPacket
		if err := p.decodeInto(&info); err != nil {
			return err
		}
		if c.h.locationInfo != nil {
			c.h.locationInfo(info.Locations)
		}
	case CmdRoomUpdate:
		var update roomUpdatePacket
		if err := p.decodeInto(&update); err != nil {
			return err
		}
		c.onRoomUpdate(update)
	case CmdDataPackage:
		var pkg dataPackagePacket
		if err := p.decodeInto(&pkg); err != nil {
			return err
		}
		c.dp.merge(pkg.Data.Games)
		if c.h.dataPackageChanged != nil {
			c.h.dataPackageChanged(p.Raw["data"])
		}
	case CmdPrint:
		var msg printPacket
		if err := p.decodeInto(&msg); err != nil {
			return err
		}
		if c.h.print != nil {
			c.h.print(msg.Text)
		}
	case CmdPrintJSON:
		if c.h.printJSON != nil {
			c.h.printJSON(p.Raw)
		}
	case CmdBounced:
		if c.h.bounced != nil {
			c.h.bounced(p.Raw)
		}
	case CmdRetrieved:
		keys, _ := p.Raw["keys"].(map[string]any)
		if keys == nil {
			keys = map[string]any{}
		}
		if c.h.retrieved != nil {
			c.h.retrieved(keys, p.Raw)
		}
	case CmdSetReply:
		if c.h.setReply != nil {
			c.h.setReply(p.Raw)
		}
	default:
		c.log.Log(1, "apclient: ignoring unknown packet %q", p.Cmd)
	}
	return nil
}

func (c *Client) onConnected(connected connectedPacket) {
	c.state = StateSlotConnected
	c.team = connected.Team
	c.slotNumber = connected.Slot
	c.players = connected.Players
	c.hintPoints = connected.HintPoints
	c.slotGames = make(map[int]string, len(connected.SlotInfo))
	for key, info := range connected.SlotInfo {
		if n, err := strconv.Atoi(key); err == nil {
			c.slotGames[n] = info.Game
		}
	}
	c.checked = make(map[int64]struct{}, len(connected.CheckedLocations))
	for _, loc := range connected.CheckedLocations {
		c.checked[loc] = struct{}{}
	}
	c.missing = make(map[int64]struct{}, len(connected.MissingLocations))
	for _, loc := range connected.MissingLocations {
		if _, done := c.checked[loc]; !done {
			c.missing[loc] = struct{}{}
		}
	}

	if len(c.pendingChecks) > 0 {
		pending := c.pendingChecks
		c.pendingChecks = nil
		c.markChecked(pending)
		if err := c.send(LocationsPacket{Cmd: CmdLocationChecks, Locations: pending}); err != nil {
			c.log.Log(0, "apclient: flushing location checks: %v", err)
		}
	}
	for _, s := range c.pendingScouts {
		if err := c.sendScout(s); err != nil {
			c.log.Log(0, "apclient: flushing location scouts: %v", err)
		}
	}
	c.pendingScouts = nil
}

func (c *Client) onRoomUpdate(update roomUpdatePacket) {
	if update.HintPoints != nil {
		c.hintPoints = *update.HintPoints
	}
	if update.HintCost != nil {
		c.hintCostPercent = *update.HintCost
	}
	if update.Players != nil {
		c.players = update.Players
	}
	if update.CheckedLocations == nil {
		return
	}
	var fresh []int64
	for _, loc := range update.CheckedLocations {
		if _, done := c.checked[loc]; done {
			continue
		}
		c.checked[loc] = struct{}{}
		delete(c.missing, loc)
		fresh = append(fresh, loc)
	}
	if len(fresh) > 0 && c.h.locationChecked != nil {
		c.h.locationChecked(fresh)
	}
}

func (c *Client) markChecked(locations []int64) {
	for _, loc := range locations {
		c.checked[loc] = struct{}{}
		delete(c.missing, loc)
	}
}

func (c *Client) missingGames() []string {
	var out []string
	for _, g := range c.roomGames {
		if _, ok := c.dp.games[g]; !ok {
			out = append(out, g)
		}
	}
	return out
}

// send writes one frame holding the given packets.
func (c *Client) send(packets ...any) error {
	if c.sock == nil {
		return ErrNotConnected
	}
	if err := c.sock.conn.WriteJSON(packets); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Client) requireSlot() error {
	if c.state != StateSlotConnected {
		return ErrNotConnected
	}
	return nil
}

// ConnectSlot authenticates as the named slot. A nil version sends DefaultVersion.
func (c *Client) ConnectSlot(name, password string, itemsHandling int, tags []string, version *Version) error {
	if c.state < StateRoomInfo {
		return ErrNotConnected
	}
	v := DefaultVersion
	if version != nil {
		v = *version
	}
	if tags == nil {
		tags = []string{}
	}
	c.slotName = name
	return c.send(ConnectPacket{
		Cmd:           CmdConnect,
		Game:          c.game,
		Name:          name,
		Password:      password,
		UUID:          c.uuid,
		Version:       newVersionJSON(v),
		ItemsHandling: itemsHandling,
		Tags:          tags,
		SlotData:      true,
	})
}

// ConnectUpdate changes items handling (when non-nil) and tags (when non-nil).
func (c *Client) ConnectUpdate(itemsHandling *int, tags []string) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	packet := map[string]any{"cmd": CmdConnectUpdate}
	if itemsHandling != nil {
		packet["items_handling"] = *itemsHandling
	}
	if tags != nil {
		packet["tags"] = tags
	}
	return c.send(packet)
}

// Sync asks the server to resend all received items.
func (c *Client) Sync() error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	return c.send(simplePacket{Cmd: CmdSync})
}

// LocationChecks marks locations as checked. Before the slot is connected the
// checks are queued and sent on connect.
func (c *Client) LocationChecks(locations []int64) error {
	c.markChecked(locations)
	if c.state != StateSlotConnected {
		c.pendingChecks = append(c.pendingChecks, locations...)
		return nil
	}
	return c.send(LocationsPacket{Cmd: CmdLocationChecks, Locations: locations})
}

// LocationScouts asks for the items at locations; queued like LocationChecks.
func (c *Client) LocationScouts(locations []int64, mode HintMode) error {
	s := scout{locations: locations, mode: mode}
	if c.state != StateSlotConnected {
		c.pendingScouts = append(c.pendingScouts, s)
		return nil
	}
	return c.sendScout(s)
}

func (c *Client) sendScout(s scout) error {
	mode := int(s.mode)
	return c.send(LocationsPacket{Cmd: CmdLocationScouts, Locations: s.locations, CreateAsHint: &mode})
}

// StatusUpdate reports the client status.
func (c *Client) StatusUpdate(status ClientStatus) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	return c.send(StatusUpdatePacket{Cmd: CmdStatusUpdate, Status: status})
}

// Say sends chat text.
func (c *Client) Say(text string) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	return c.send(SayPacket{Cmd: CmdSay, Text: text})
}

// Bounce relays data to the clients matching any of games, slots or tags.
func (c *Client) Bounce(data any, games []string, slots []int, tags []string) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	return c.send(BouncePacket{Cmd: CmdBounce, Games: games, Slots: slots, Tags: tags, Data: data})
}

// Get reads data storage keys. Extras are echoed back in Retrieved.
func (c *Client) Get(keys []string, extras map[string]any) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	if keys == nil {
		keys = []string{}
	}
	return c.send(withExtras(map[string]any{"cmd": CmdGet, "keys": keys}, extras))
}

// Set applies operations to a data storage key.
func (c *Client) Set(key string, dflt any, wantReply bool, operations []DataStorageOperation, extras map[string]any) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	if operations == nil {
		operations = []DataStorageOperation{}
	}
	return c.send(withExtras(map[string]any{
		"cmd":        CmdSet,
		"key":        key,
		"default":    dflt,
		"want_reply": wantReply,
		"operations": operations,
	}, extras))
}

// SetNotify subscribes to changes of data storage keys.
func (c *Client) SetNotify(keys []string) error {
	if err := c.requireSlot(); err != nil {
		return err
	}
	if keys == nil {
		keys = []string{}
	}
	return c.send(SetNotifyPacket{Cmd: CmdSetNotify, Keys: keys})
}

// Queries

func (c *Client) State() State { return c.state }
func (c *Client) Seed() string { return c.seed }
func (c *Client) SlotName() string { return c.slotName }
func (c *Client) PlayerNumber() int { return c.slotNumber }
func (c *Client) TeamNumber() int { return c.team }
func (c *Client) HintPoints() int { return c.hintPoints }
func (c *Client) HintCostPercent() int { return c.hintCostPercent }
func (c *Client) Game() string { return c.game }
func (c *Client) Players() []Player { return slices.Clone(c.players) }

// HintCostPoints is the cost of one hint in points.
func (c *Client) HintCostPoints() int {
	if c.hintCostPercent == 0 {
		return 0
	}
	count := len(c.checked) + len(c.missing)
	return max(1, c.hintCostPercent*count/100)
}

// IsDataPackageValid reports whether name tables exist for every game in the room.
func (c *Client) IsDataPackageValid() bool {
	return c.state >= StateRoomInfo && c.dp.covers(c.roomGames)
}

// ServerTime estimates the current server time in seconds since the epoch.
func (c *Client) ServerTime() float64 {
	if c.serverTimeAt.IsZero() {
		return 0
	}
	return c.serverTime + time.Since(c.serverTimeAt).Seconds()
}

// PlayerAlias returns the display name of a slot.
func (c *Client) PlayerAlias(slot int) string {
	if slot == 0 {
		return "Server"
	}
	for _, p := range c.players {
		if p.Slot == slot && p.Team == c.team {
			return p.Alias
		}
	}
	return unknownName
}

// PlayerGame returns the game of a slot, or "" when unknown.
func (c *Client) PlayerGame(slot int) string {
	if slot == 0 {
		return "Archipelago"
	}
	return c.slotGames[slot]
}

// ItemName resolves an item id; an empty game searches every game.
func (c *Client) ItemName(id int64, game string) string { return c.dp.itemName(id, game) }

// LocationName resolves a location id; an empty game searches every game.
func (c *Client) LocationName(id int64, game string) string { return c.dp.locationName(id, game) }

// ItemID resolves an item name of the client's own game.
func (c *Client) ItemID(name string) int64 { return c.dp.itemID(c.game, name) }

// LocationID resolves a location name of the client's own game.
func (c *Client) LocationID(name string) int64 { return c.dp.locationID(c.game, name) }

// CheckedLocations returns the checked set in ascending order.
func (c *Client) CheckedLocations() []int64 { return sortedKeys(c.checked) }

// MissingLocations returns the missing set in ascending order.
func (c *Client) MissingLocations() []int64 { return sortedKeys(c.missing) }

// Render renders a node list using this client's name tables.
func (c *Client) Render(nodes []TextNode, format RenderFormat) (string, error) {
	return Render(nodes, format, c)
}

func sortedKeys(set map[int64]struct{}) []int64 {
	return slices.Sorted(maps.Keys(set))
}

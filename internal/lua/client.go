package lua

import "github.com/zot/aplua/internal/apclient"

// Client is the protocol client a Bridge drives. apclient.Client implements it.
// Handlers installed through the setters must only fire from within Poll.
type Client interface {
	Poll() error
	Reset()
	Close() error

	SetSocketConnectedHandler(func())
	SetSocketErrorHandler(func(string))
	SetSocketDisconnectedHandler(func())
	SetRoomInfoHandler(func())
	SetSlotConnectedHandler(func(any))
	SetSlotRefusedHandler(func([]string))
	SetItemsReceivedHandler(func([]apclient.NetworkItem))
	SetLocationInfoHandler(func([]apclient.NetworkItem))
	SetLocationCheckedHandler(func([]int64))
	SetDataPackageChangedHandler(func(any))
	SetPrintHandler(func(string))
	SetPrintJSONHandler(func(map[string]any))
	SetBouncedHandler(func(map[string]any))
	SetRetrievedHandler(func(keys, packet map[string]any))
	SetSetReplyHandler(func(map[string]any))

	ConnectSlot(name, password string, itemsHandling int, tags []string, version *apclient.Version) error
	ConnectUpdate(itemsHandling *int, tags []string) error
	Sync() error
	Bounce(data any, games []string, slots []int, tags []string) error
	StatusUpdate(status apclient.ClientStatus) error
	LocationChecks(locations []int64) error
	LocationScouts(locations []int64, mode apclient.HintMode) error
	Say(text string) error
	Get(keys []string, extras map[string]any) error
	Set(key string, dflt any, wantReply bool, operations []apclient.DataStorageOperation, extras map[string]any) error
	SetNotify(keys []string) error

	State() apclient.State
	Seed() string
	SlotName() string
	PlayerNumber() int
	TeamNumber() int
	HintPoints() int
	HintCostPoints() int
	HintCostPercent() int
	IsDataPackageValid() bool
	ServerTime() float64
	Players() []apclient.Player
	Game() string
	PlayerAlias(slot int) string
	PlayerGame(slot int) string
	ItemName(id int64, game string) string
	ItemID(name string) int64
	LocationName(id int64, game string) string
	LocationID(name string) int64
	CheckedLocations() []int64
	MissingLocations() []int64
	Render(nodes []apclient.TextNode, format apclient.RenderFormat) (string, error)
}

var _ Client = (*apclient.Client)(nil)

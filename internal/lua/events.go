package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"github.com/zot/aplua/internal/apclient"
)

// EventKind is one of the protocol events a script can handle.
type EventKind int

const (
	EventSocketConnected EventKind = iota
	EventSocketError
	EventSocketDisconnected
	EventRoomInfo
	EventSlotConnected
	EventSlotRefused
	EventItemsReceived
	EventLocationInfo
	EventLocationChecked
	EventDataPackageChanged
	EventPrint
	EventPrintJSON
	EventBounced
	EventRetrieved
	EventSetReply
	numEvents
)

var eventNames = [numEvents]string{
	"socket_connected",
	"socket_error",
	"socket_disconnected",
	"room_info",
	"slot_connected",
	"slot_refused",
	"items_received",
	"location_info",
	"location_checked",
	"data_package_changed",
	"print",
	"print_json",
	"bounced",
	"retrieved",
	"set_reply",
}

// String returns the Lua name of the event, as in set_<name>_handler.
func (k EventKind) String() string {
	if k < 0 || k >= numEvents {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventNames[k]
}

// Register stores fn as the handler for kind, releasing the previous one first.
func (b *Bridge) Register(kind EventKind, fn lua.LValue) {
	b.handles.Replace(&b.handlers[kind], fn)
	if !b.installed[kind] {
		b.install(kind)
	}
}

// handler returns whether a script handler is set for kind.
func (b *Bridge) handler(kind EventKind) bool {
	return !b.closed && b.handlers[kind].IsSet()
}

// fire invokes the handler for kind. A failure goes to the error sink.
func (b *Bridge) fire(kind EventKind, args ...lua.LValue) {
	if !b.handler(kind) {
		return
	}
	b.Log(3, "lua: calling %s_handler", kind)
	if err := b.handles.Invoke(b.handlers[kind], args...); err != nil {
		msg := fmt.Sprintf("Error calling %s_handler:\n%s", kind, b.format(err))
		b.Log(0, "%s", msg)
		b.errs.Push(msg)
	}
}

// install puts the trampoline for kind on the client.
func (b *Bridge) install(kind EventKind) {
	L := b.L
	b.installed[kind] = true
	switch kind {
	case EventSocketConnected:
		b.client.SetSocketConnectedHandler(func() { b.fire(kind) })
	case EventSocketError:
		b.client.SetSocketErrorHandler(func(msg string) { b.fire(kind, lua.LString(msg)) })
	case EventSocketDisconnected:
		b.client.SetSocketDisconnectedHandler(func() { b.fire(kind) })
	case EventRoomInfo:
		b.client.SetRoomInfoHandler(func() { b.fire(kind) })
	case EventSlotConnected:
		b.client.SetSlotConnectedHandler(func(slotData any) {
			if b.closed {
				return
			}
			b.mirrors.Resync(CheckedLocations, b.client.CheckedLocations())
			b.mirrors.Resync(MissingLocations, b.client.MissingLocations())
			if b.handler(kind) {
				b.fire(kind, GoToLua(L, slotData))
			}
		})
	case EventSlotRefused:
		b.client.SetSlotRefusedHandler(func(errs []string) { b.fire(kind, GoToLua(L, errs)) })
	case EventItemsReceived:
		b.client.SetItemsReceivedHandler(func(items []apclient.NetworkItem) { b.fire(kind, GoToLua(L, items)) })
	case EventLocationInfo:
		b.client.SetLocationInfoHandler(func(items []apclient.NetworkItem) { b.fire(kind, GoToLua(L, items)) })
	case EventLocationChecked:
		b.client.SetLocationCheckedHandler(func(locations []int64) {
			if b.closed {
				return
			}
			b.mirrors.AppendUnique(CheckedLocations, locations)
			b.mirrors.Resync(MissingLocations, b.client.MissingLocations())
			if b.handler(kind) {
				b.fire(kind, int64List(L, locations))
			}
		})
	case EventDataPackageChanged:
		b.client.SetDataPackageChangedHandler(func(data any) { b.fire(kind, GoToLua(L, data)) })
	case EventPrint:
		b.client.SetPrintHandler(func(text string) { b.fire(kind, lua.LString(text)) })
	case EventPrintJSON:
		b.client.SetPrintJSONHandler(func(packet map[string]any) {
			if b.handler(kind) {
				b.fire(kind, GoToLua(L, packet["data"]), GoToLua(L, packet))
			}
		})
	case EventBounced:
		b.client.SetBouncedHandler(func(packet map[string]any) { b.fire(kind, GoToLua(L, packet)) })
	case EventRetrieved:
		b.client.SetRetrievedHandler(func(keys, packet map[string]any) {
			if b.handler(kind) {
				b.fire(kind, GoToLua(L, keys), sortedKeyList(L, keys), GoToLua(L, packet))
			}
		})
	case EventSetReply:
		b.client.SetSetReplyHandler(func(packet map[string]any) { b.fire(kind, GoToLua(L, packet)) })
	}
}

// detachAll removes every trampoline from the client.
func (b *Bridge) detachAll() {
	b.client.SetSocketConnectedHandler(nil)
	b.client.SetSocketErrorHandler(nil)
	b.client.SetSocketDisconnectedHandler(nil)
	b.client.SetRoomInfoHandler(nil)
	b.client.SetSlotConnectedHandler(nil)
	b.client.SetSlotRefusedHandler(nil)
	b.client.SetItemsReceivedHandler(nil)
	b.client.SetLocationInfoHandler(nil)
	b.client.SetLocationCheckedHandler(nil)
	b.client.SetDataPackageChangedHandler(nil)
	b.client.SetPrintHandler(nil)
	b.client.SetPrintJSONHandler(nil)
	b.client.SetBouncedHandler(nil)
	b.client.SetRetrievedHandler(nil)
	b.client.SetSetReplyHandler(nil)
	b.installed = [numEvents]bool{}
}

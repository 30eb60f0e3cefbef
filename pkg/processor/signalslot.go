package processor

import (
	"math"
	"reflect"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
)

// NoOrder marks a connection without an explicit order. Such connections run
// after every ordered one, in the order they were made.
const NoOrder = math.MinInt

// Link is one signal-to-slot connection as seen from the signal.
type Link struct {
	Slot  SlotBase
	Order int
}

// SignalBase is the untyped view of a Signal.
type SignalBase interface {
	Name() string
	Owner() string
	ArgType() reflect.Type

	// Connect links slot to this signal. The slot must take the same argument
	// type. Connecting an already connected pair is a no-op.
	Connect(slot SlotBase, order int) error
	Disconnect(slot SlotBase)
	DisconnectAll()
	IsConnected(slot SlotBase) bool
	// Connections returns the links in the order they are invoked.
	Connections() []Link

	SetDoBreakpoint(bool)
	DoBreakpoint() bool
	SetControl(control.Control)
	SetLogger(*zap.Logger)

	setOwner(name string)
}

// SlotBase is the untyped view of a Slot.
type SlotBase interface {
	Name() string
	Owner() string
	ArgType() reflect.Type

	// ConnectTo links this slot to sig; equivalent to sig.Connect(slot, order).
	ConnectTo(sig SignalBase, order int) error
	Disconnect(sig SignalBase)
	DisconnectAll()
	IsConnected(sig SignalBase) bool
	Signals() []SignalBase

	setOwner(name string)
	addSignal(sig SignalBase)
	removeSignal(sig SignalBase)
}

// Owner is the processor side of signal and slot registration.
type Owner interface {
	Name() string
	RegisterSignal(sig SignalBase) error
	RegisterSlot(slot SlotBase) error
}

func argType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// address renders "owner:name", or just name for free-standing ends.
func address(owner, name string) string {
	if owner == "" {
		return name
	}
	return owner + string(AddressSeparator) + name
}

// Package processor provides typed signals and slots, the processors that own
// them, and the toolbox that builds and wires processors from configuration.
package processor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
)

// Processor owns a named set of signals and slots.
type Processor interface {
	Owner

	// Configure reads the processor's own configuration entry.
	Configure(node *param.Node) error

	Signal(name string) (SignalBase, bool)
	Slot(name string) (SlotBase, bool)
	SignalNames() []string
	SlotNames() []string

	// ConnectASlot connects this processor's signal to a slot of to.
	ConnectASlot(signalName string, to Processor, slotName string, order int) error
	// DisconnectAll severs every connection of every signal and slot.
	DisconnectAll()

	SetControl(c control.Control)
	SetLogger(l *zap.Logger)
}

// Primary is a processor that starts a processing chain.
type Primary interface {
	Processor

	// Run drives the chain. ctx is canceled when the run is canceled.
	Run(ctx context.Context) error
	// ChainErr returns the error captured by the last Operate call.
	ChainErr() error

	setChainErr(err error)
}

// Base implements Processor except for Configure. Concrete processors embed
// *Base and register their signals and slots in their constructor.
type Base struct {
	name string
	log  *zap.Logger
	ctrl control.Control

	signals     map[string]SignalBase
	signalOrder []string
	slots       map[string]SlotBase
	slotOrder   []string

	mu       sync.Mutex
	chainErr error
}

// NewBase returns a Base for a processor called name.
func NewBase(name string) *Base {
	return &Base{
		name:    name,
		log:     zap.NewNop(),
		signals: make(map[string]SignalBase),
		slots:   make(map[string]SlotBase),
	}
}

func (b *Base) Name() string { return b.name }

// Logger returns the processor's logger.
func (b *Base) Logger() *zap.Logger { return b.log }

// Control returns the attached controller, which may be nil.
func (b *Base) Control() control.Control { return b.ctrl }

// RegisterSignal adds sig under its name.
func (b *Base) RegisterSignal(sig SignalBase) error {
	if _, ok := b.signals[sig.Name()]; ok {
		return fmt.Errorf("processor %q: signal %q: %w", b.name, sig.Name(), ErrDuplicateName)
	}
	sig.setOwner(b.name)
	sig.SetLogger(b.log)
	if b.ctrl != nil {
		sig.SetControl(b.ctrl)
	}
	b.signals[sig.Name()] = sig
	b.signalOrder = append(b.signalOrder, sig.Name())
	return nil
}

// RegisterSlot adds slot under its name.
func (b *Base) RegisterSlot(slot SlotBase) error {
	if _, ok := b.slots[slot.Name()]; ok {
		return fmt.Errorf("processor %q: slot %q: %w", b.name, slot.Name(), ErrDuplicateName)
	}
	slot.setOwner(b.name)
	b.slots[slot.Name()] = slot
	b.slotOrder = append(b.slotOrder, slot.Name())
	return nil
}

func (b *Base) Signal(name string) (SignalBase, bool) {
	s, ok := b.signals[name]
	return s, ok
}

func (b *Base) Slot(name string) (SlotBase, bool) {
	s, ok := b.slots[name]
	return s, ok
}

// SignalNames returns signal names in registration order.
func (b *Base) SignalNames() []string { return append([]string(nil), b.signalOrder...) }

// SlotNames returns slot names in registration order.
func (b *Base) SlotNames() []string { return append([]string(nil), b.slotOrder...) }

// ConnectASlot implements Processor. Failures are reported as a
// ConnectionError naming both addresses, wrapping the cause.
func (b *Base) ConnectASlot(signalName string, to Processor, slotName string, order int) error {
	sigAddr := address(b.name, signalName)
	if to == nil {
		return &ConnectionError{Signal: sigAddr, Slot: slotName, Err: ErrNilPeer}
	}
	slotAddr := address(to.Name(), slotName)

	sig, ok := b.Signal(signalName)
	if !ok {
		return &ConnectionError{Signal: sigAddr, Slot: slotAddr, Err: ErrSignalNotFound}
	}
	slot, ok := to.Slot(slotName)
	if !ok {
		return &ConnectionError{Signal: sigAddr, Slot: slotAddr, Err: ErrSlotNotFound}
	}
	if err := sig.Connect(slot, order); err != nil {
		return &ConnectionError{Signal: sigAddr, Slot: slotAddr, Err: err}
	}
	b.log.Debug("connected", zap.String("signal", sigAddr), zap.String("slot", slotAddr))
	return nil
}

// DisconnectAll implements Processor.
func (b *Base) DisconnectAll() {
	for _, name := range b.signalOrder {
		b.signals[name].DisconnectAll()
	}
	for _, name := range b.slotOrder {
		b.slots[name].DisconnectAll()
	}
}

// SetControl attaches c to the processor and all of its signals.
func (b *Base) SetControl(c control.Control) {
	b.ctrl = c
	for _, s := range b.signals {
		s.SetControl(c)
	}
}

// SetLogger names l after the processor and hands it to its signals.
func (b *Base) SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	b.log = l.With(zap.String("processor", b.name))
	for _, s := range b.signals {
		s.SetLogger(b.log)
	}
}

// ChainErr implements Primary.
func (b *Base) ChainErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chainErr
}

func (b *Base) setChainErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainErr = err
}

// Operate is the entry point of a processing chain: it runs p, turns a panic
// into an error, records the outcome as p.ChainErr, and returns it. A
// cooperative quit comes back as an error matching control.ErrQuitChain.
func Operate(ctx context.Context, p Primary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor %q panicked: %v\n%s", p.Name(), r, debug.Stack())
		}
		p.setChainErr(err)
	}()
	return p.Run(ctx)
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

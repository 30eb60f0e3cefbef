package processor

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Slot wraps a function invoked by every connected Signal[T].
type Slot[T any] struct {
	name  string
	owner string
	fn    func(T) error

	mu      sync.Mutex
	signals []SignalBase
}

// NewSlot creates a slot calling fn and registers it with owner, which may be
// nil. It panics if owner already has a slot with this name.
func NewSlot[T any](name string, owner Owner, fn func(T) error) *Slot[T] {
	s := &Slot[T]{name: name, fn: fn}
	if owner != nil {
		if err := owner.RegisterSlot(s); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *Slot[T]) Name() string { return s.name }
func (s *Slot[T]) Owner() string { return s.owner }
func (s *Slot[T]) ArgType() reflect.Type { return argType[T]() }
func (s *Slot[T]) setOwner(name string) { s.owner = name }

// Invoke calls the slot function directly.
func (s *Slot[T]) Invoke(arg T) error {
	if s.fn == nil {
		return fmt.Errorf("slot %q has no function", s.name)
	}
	return s.fn(arg)
}

// ConnectTo implements SlotBase.
func (s *Slot[T]) ConnectTo(sig SignalBase, order int) error {
	if sig == nil || reflect.ValueOf(sig).IsNil() {
		return &ConnectionError{Slot: s.name, Err: ErrNilPeer}
	}
	return sig.Connect(s, order)
}

// Disconnect removes the connection to sig on both sides.
func (s *Slot[T]) Disconnect(sig SignalBase) {
	if sig == nil {
		return
	}
	sig.Disconnect(s)
}

// DisconnectAll removes every connection of this slot.
func (s *Slot[T]) DisconnectAll() {
	for _, sig := range s.Signals() {
		sig.Disconnect(s)
	}
}

// IsConnected reports whether sig is connected to this slot.
func (s *Slot[T]) IsConnected(sig SignalBase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.signals, sig)
}

// Signals returns the connected signals in connection order.
func (s *Slot[T]) Signals() []SignalBase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.signals)
}

func (s *Slot[T]) addSignal(sig SignalBase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.signals, sig) {
		s.signals = append(s.signals, sig)
	}
}

func (s *Slot[T]) removeSignal(sig SignalBase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.signals, sig); i >= 0 {
		s.signals = slices.Delete(s.signals, i, i+1)
	}
}

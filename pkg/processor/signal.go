package processor

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
)

// Signal calls every connected Slot[T] with its argument. Multi-value
// signals carry a struct; signals without a payload use struct{}.
type Signal[T any] struct {
	name  string
	owner string

	mu    sync.RWMutex
	links []link[T]
	seq   int
	ctrl  control.Control
	log   *zap.Logger

	doBreakpoint atomic.Bool
}

type link[T any] struct {
	slot  *Slot[T]
	order int
	seq   int
}

// NewSignal creates a signal and registers it with owner, which may be nil.
// It panics if owner already has a signal with this name.
func NewSignal[T any](name string, owner Owner) *Signal[T] {
	s := &Signal[T]{name: name, log: zap.NewNop()}
	if owner != nil {
		if err := owner.RegisterSignal(s); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *Signal[T]) Name() string { return s.name }
func (s *Signal[T]) Owner() string { return s.owner }
func (s *Signal[T]) ArgType() reflect.Type { return argType[T]() }
func (s *Signal[T]) setOwner(name string) { s.owner = name }

// SetControl attaches the controller consulted on every emission.
func (s *Signal[T]) SetControl(c control.Control) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl = c
}

// SetLogger sets the logger used for connection warnings.
func (s *Signal[T]) SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// SetDoBreakpoint makes every emission pause at a breakpoint.
func (s *Signal[T]) SetDoBreakpoint(on bool) { s.doBreakpoint.Store(on) }

// DoBreakpoint reports whether emissions pause.
func (s *Signal[T]) DoBreakpoint() bool { return s.doBreakpoint.Load() }

// Connect implements SignalBase.
func (s *Signal[T]) Connect(slot SlotBase, order int) error {
	if slot == nil || reflect.ValueOf(slot).IsNil() {
		return &ConnectionError{Signal: s.name, Err: ErrNilPeer}
	}
	typed, ok := slot.(*Slot[T])
	if !ok {
		return &ConnectionError{
			Signal: s.name,
			Slot:   slot.Name(),
			Err:    fmt.Errorf("%w: signal carries %s, slot takes %s", ErrTypeMismatch, s.ArgType(), slot.ArgType()),
		}
	}

	s.mu.Lock()
	if s.indexOf(typed) >= 0 {
		log := s.log
		s.mu.Unlock()
		log.Warn("signal and slot already connected",
			zap.String("signal", address(s.owner, s.name)),
			zap.String("slot", address(typed.owner, typed.name)))
		return nil
	}
	s.seq++
	s.links = append(s.links, link[T]{slot: typed, order: order, seq: s.seq})
	slices.SortStableFunc(s.links, compareLinks[T])
	s.mu.Unlock()

	typed.addSignal(s)
	return nil
}

// compareLinks puts ordered links first (ascending), then unordered ones in
// connection order.
func compareLinks[T any](a, b link[T]) int {
	aOrdered, bOrdered := a.order != NoOrder, b.order != NoOrder
	switch {
	case aOrdered && !bOrdered:
		return -1
	case !aOrdered && bOrdered:
		return 1
	case aOrdered && a.order != b.order:
		if a.order < b.order {
			return -1
		}
		return 1
	default:
		return a.seq - b.seq
	}
}

func (s *Signal[T]) indexOf(slot *Slot[T]) int {
	for i, l := range s.links {
		if l.slot == slot {
			return i
		}
	}
	return -1
}

// Disconnect removes slot from this signal and this signal from slot.
func (s *Signal[T]) Disconnect(slot SlotBase) {
	typed, ok := slot.(*Slot[T])
	if !ok || typed == nil {
		return
	}
	s.mu.Lock()
	i := s.indexOf(typed)
	if i >= 0 {
		s.links = slices.Delete(s.links, i, i+1)
	}
	s.mu.Unlock()
	if i >= 0 {
		typed.removeSignal(s)
	}
}

// DisconnectAll removes every connection of this signal.
func (s *Signal[T]) DisconnectAll() {
	for _, l := range s.snapshot() {
		s.Disconnect(l.slot)
	}
}

// IsConnected reports whether slot is connected to this signal.
func (s *Signal[T]) IsConnected(slot SlotBase) bool {
	typed, ok := slot.(*Slot[T])
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(typed) >= 0
}

// Connections implements SignalBase.
func (s *Signal[T]) Connections() []Link {
	links := s.snapshot()
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = Link{Slot: l.slot, Order: l.order}
	}
	return out
}

func (s *Signal[T]) snapshot() []link[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.links)
}

// Emit delivers arg to every connected slot on the calling goroutine.
//
// Before dispatch the attached controller is consulted: a canceled run, or a
// break that ends in cancellation, returns control.ErrQuitChain. When the
// signal has its breakpoint set, the emission pauses with &arg exposed as the
// controller's return value, so an observer may inspect or modify the
// argument before the slots see it.
//
// The first slot error stops dispatch and is returned.
func (s *Signal[T]) Emit(arg T) error {
	s.mu.RLock()
	ctrl := s.ctrl
	s.mu.RUnlock()

	if ctrl != nil {
		if ctrl.IsCanceled() || (ctrl.IsAtBreak() && !ctrl.WaitToContinue()) {
			return fmt.Errorf("signal %q: %w", s.name, control.ErrQuitChain)
		}
	}

	if s.DoBreakpoint() {
		if ctrl == nil {
			return fmt.Errorf("signal %q: breakpoint: %w", s.name, control.ErrNoController)
		}
		if err := ctrl.BreakAndReturn(&arg); err != nil {
			return fmt.Errorf("signal %q: %v: %w", s.name, err, control.ErrQuitChain)
		}
		if !ctrl.WaitToContinue() {
			return fmt.Errorf("signal %q: canceled at breakpoint: %w", s.name, control.ErrQuitChain)
		}
	}

	for _, l := range s.snapshot() {
		if err := l.slot.Invoke(arg); err != nil {
			if control.IsQuitChain(err) {
				return err
			}
			return fmt.Errorf("signal %q -> slot %q: %w", address(s.owner, s.name), address(l.slot.owner, l.slot.name), err)
		}
	}
	return nil
}

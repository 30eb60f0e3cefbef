package processor

import (
	"fmt"

	"github.com/ravi-parthasarathy/nymph/pkg/data"
)

// NewDataSlot creates a frame slot that requires an I payload, hands fn the
// I payload and the (possibly new) O payload of the frame, and on success
// emits the frame on next, which may be nil.
func NewDataSlot[I, O any](name string, owner Owner, fn func(in *I, out *O) error, next *Signal[data.Handle]) *Slot[data.Handle] {
	return NewFrameSlot(name, owner, func(f data.Handle) error {
		in, err := data.Peek[I](f)
		if err != nil {
			return fmt.Errorf("slot %q: %w", name, err)
		}
		return fn(in, data.Get[O](f))
	}, next)
}

// NewFrameSlot creates a frame slot calling fn and then emitting the frame on
// next, which may be nil.
func NewFrameSlot(name string, owner Owner, fn func(f data.Handle) error, next *Signal[data.Handle]) *Slot[data.Handle] {
	return NewSlot(name, owner, func(f data.Handle) error {
		if f == nil {
			return fmt.Errorf("slot %q: nil frame", name)
		}
		if err := fn(f); err != nil {
			return err
		}
		if next != nil {
			return next.Emit(f)
		}
		return nil
	})
}

package processors

import (
	"fmt"

	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// Cut records a named cut on every frame: it is failed (true) when the frame
// counter is a multiple of every, passed otherwise.
//
// Configuration:
//
//	cut: <name>          # default: the processor name
//	position: <uint>     # bit position in the cut mask; default 0
//	every: <uint>        # default 2
type Cut struct {
	*processor.Base

	cut      string
	position uint
	every    uint64

	out *processor.Signal[data.Handle]
}

// NewCut creates a Cut.
func NewCut(name string) *Cut {
	c := &Cut{Base: processor.NewBase(name), cut: name, every: 2}
	c.out = processor.NewSignal[data.Handle]("frame", c)
	processor.NewFrameSlot("frame", c, c.apply, c.out)
	return c
}

func (c *Cut) Configure(node *param.Node) error {
	name, err := node.String("cut", c.cut)
	if err != nil {
		return err
	}
	pos, err := node.Uint("position", c.position)
	if err != nil {
		return err
	}
	if pos >= 64 {
		return param.Errorf(node.Path(), "position %d does not fit a 64-bit mask", pos)
	}
	every, err := node.Uint("every", uint(c.every))
	if err != nil {
		return err
	}
	if every == 0 {
		return param.Errorf(node.Path(), "every must be positive")
	}
	c.cut, c.position, c.every = name, pos, uint64(every)
	return nil
}

func (c *Cut) apply(f data.Handle) error {
	state := f.Counter%c.every == 0
	cuts := f.Cuts()
	if cuts.Has(c.cut) {
		return cuts.SetState(c.cut, state)
	}
	if err := cuts.Assign(c.position, c.cut, state); err != nil {
		return fmt.Errorf("cut %q: %w", c.Name(), err)
	}
	return nil
}

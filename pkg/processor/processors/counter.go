package processors

import (
	"sync/atomic"

	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
	"github.com/ravi-parthasarathy/nymph/pkg/service"
)

// Count is the frame payload maintained by Counter.
type Count struct {
	N uint64
}

// Counter increments the Count payload of every frame it sees and passes the
// frame on. With a tally service configured it also adds one to the named
// counter there.
//
// Configuration:
//
//	tally: <service name>  # optional
//	key: <counter name>    # default: the processor name
type Counter struct {
	*processor.Base

	seen      atomic.Uint64
	tallyName string
	key       string
	tally     *service.Tally

	out *processor.Signal[data.Handle]
}

// NewCounter creates a Counter.
func NewCounter(name string) *Counter {
	c := &Counter{Base: processor.NewBase(name), key: name}
	c.out = processor.NewSignal[data.Handle]("frame", c)
	processor.NewFrameSlot("frame", c, c.count, c.out)
	return c
}

func (c *Counter) Configure(node *param.Node) error {
	var err error
	if c.tallyName, err = node.String("tally", ""); err != nil {
		return err
	}
	c.key, err = node.String("key", c.key)
	return err
}

// UseServices looks up the configured tally service.
func (c *Counter) UseServices(tb *service.Toolbox) error {
	if c.tallyName == "" {
		return nil
	}
	t, err := service.Get[*service.Tally](tb, c.tallyName)
	if err != nil {
		return err
	}
	c.tally = t
	return nil
}

func (c *Counter) count(f data.Handle) error {
	data.Get[Count](f).N++
	c.seen.Add(1)
	if c.tally != nil {
		c.tally.Add(c.key, 1)
	}
	return nil
}

// Seen returns the number of frames counted.
func (c *Counter) Seen() uint64 { return c.seen.Load() }

package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// Wait is a primary that sleeps for a duration and then emits done. A
// canceled run ends the wait early with a quit.
//
// Configuration:
//
//	duration: <duration>  # e.g. "250ms"; default 1s
type Wait struct {
	*processor.Base

	duration time.Duration
	done     *processor.Signal[struct{}]
}

// NewWait creates a Wait.
func NewWait(name string) *Wait {
	w := &Wait{Base: processor.NewBase(name), duration: time.Second}
	w.done = processor.NewSignal[struct{}]("done", w)
	return w
}

func (w *Wait) Configure(node *param.Node) error {
	d, err := node.Duration("duration", w.duration)
	if err != nil {
		return err
	}
	if d < 0 {
		return param.Errorf(node.Path(), "duration must not be negative")
	}
	w.duration = d
	return nil
}

func (w *Wait) Run(ctx context.Context) error {
	timer := time.NewTimer(w.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait %q canceled: %w", w.Name(), control.ErrQuitChain)
	case <-timer.C:
		return w.done.Emit(struct{}{})
	}
}

package processors

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

// PopMode selects how DataQueue waits for the next frame.
type PopMode int

const (
	// PopUntimed blocks until a frame arrives or the queue is stopped.
	PopUntimed PopMode = iota
	// PopTimed waits at most the configured timeout, then stops.
	PopTimed
	// PopSingle stops as soon as the queue is empty.
	PopSingle
)

func (m PopMode) String() string {
	switch m {
	case PopTimed:
		return "timed"
	case PopSingle:
		return "single"
	default:
		return "untimed"
	}
}

// DefaultQueueTimeout is the timed-pop wait when none is configured.
const DefaultQueueTimeout = time.Second

// DataQueue decouples chains: frames pushed into its data slot are emitted on
// its data signal from the queue's own goroutine. Run returns, emitting
// queue-done, after a frame marked LastData, after Stop, when the run is
// canceled, or when the pop mode gives up.
//
// Configuration:
//
//	timeout: <uint>  # timed-pop wait in milliseconds; default 1000
//	pop: untimed | timed | single
//
// Slots: data (frame), use-timed-pop, use-untimed-pop, use-single-pop.
// Signals: data (frame), queue-done.
type DataQueue struct {
	*processor.Base

	mu      sync.Mutex
	frames  []data.Handle
	mode    PopMode
	timeout time.Duration
	stopped bool
	wake    chan struct{}

	out  *processor.Signal[data.Handle]
	done *processor.Signal[struct{}]
}

// NewDataQueue creates an empty DataQueue in untimed mode.
func NewDataQueue(name string) *DataQueue {
	q := &DataQueue{
		Base:    processor.NewBase(name),
		timeout: DefaultQueueTimeout,
		wake:    make(chan struct{}, 1),
	}
	q.out = processor.NewSignal[data.Handle]("data", q)
	q.done = processor.NewSignal[struct{}]("queue-done", q)
	processor.NewSlot("data", q, q.Push)
	processor.NewSlot("use-timed-pop", q, q.switchTo(PopTimed))
	processor.NewSlot("use-untimed-pop", q, q.switchTo(PopUntimed))
	processor.NewSlot("use-single-pop", q, q.switchTo(PopSingle))
	return q
}

func (q *DataQueue) Configure(node *param.Node) error {
	ms, err := node.Uint("timeout", uint(q.timeout/time.Millisecond))
	if err != nil {
		return err
	}
	if ms == 0 {
		return param.Errorf(node.Path(), "timeout must be positive")
	}
	mode, err := node.String("pop", q.mode.String())
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.timeout = time.Duration(ms) * time.Millisecond
	switch mode {
	case "untimed":
		q.mode = PopUntimed
	case "timed":
		q.mode = PopTimed
	case "single":
		q.mode = PopSingle
	default:
		return param.Errorf(node.Path(), "unknown pop mode %q", mode)
	}
	return nil
}

// Push queues f for emission.
func (q *DataQueue) Push(f data.Handle) error {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
	q.notify()
	return nil
}

// SetPopMode switches the pop mode, waking a waiting Run.
func (q *DataQueue) SetPopMode(m PopMode) {
	q.mu.Lock()
	q.mode = m
	q.mu.Unlock()
	q.notify()
}

func (q *DataQueue) switchTo(m PopMode) func(struct{}) error {
	return func(struct{}) error {
		q.SetPopMode(m)
		return nil
	}
}

// Stop makes Run return once the frame in flight, if any, is done.
func (q *DataQueue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.notify()
	q.Logger().Info("queue stopped")
}

// Len returns the number of queued frames.
func (q *DataQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Clear drops every queued frame.
func (q *DataQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = nil
}

func (q *DataQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run emits queued frames until one of the stop conditions holds.
func (q *DataQueue) Run(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = false
	q.mu.Unlock()
	q.Logger().Info("queue started")

	for {
		f, ok := q.pop(ctx)
		if !ok {
			break
		}
		if err := q.out.Emit(f); err != nil {
			return err
		}
		if f.LastData {
			break
		}
	}
	q.Logger().Info("queue processing has ended")
	return q.done.Emit(struct{}{})
}

// pop returns the next frame, or false when Run should stop.
func (q *DataQueue) pop(ctx context.Context) (data.Handle, bool) {
	var deadline <-chan time.Time
	for {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.frames) > 0 {
			f := q.frames[0]
			q.frames[0] = nil
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return f, true
		}
		mode, timeout := q.mode, q.timeout
		q.mu.Unlock()

		switch mode {
		case PopSingle:
			return nil, false
		case PopTimed:
			if deadline == nil {
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				deadline = timer.C
			}
		default:
			deadline = nil
		}

		select {
		case <-q.wake:
		case <-deadline:
			q.Logger().Debug("timed pop expired", zap.Duration("timeout", timeout))
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

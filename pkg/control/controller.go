// Package control coordinates the goroutines of a run: breakpoints, resuming,
// cancellation, and the values a paused emission exposes to observers.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
)

// Process exit codes recorded by Cancel.
const (
	ExitSuccess = 0
	ExitError   = 1
)

// DefaultCycleTime bounds every wait between re-checks of its condition.
const DefaultCycleTime = 500 * time.Millisecond

// Control is the part of a controller that signals and processors use while a
// run is active.
type Control interface {
	IsCanceled() bool
	IsAtBreak() bool
	WaitToContinue() bool
	Break() error
	BreakAndReturn(ret any) error
	Continue()
	Cancel(code int)
	ChainIsQuitting(name string, err error)
	Context() context.Context
}

// Option configures a Controller.
type Option func(*Controller)

// WithCycleTime sets the poll interval of every wait.
func WithCycleTime(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.cycleTime = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = logging.OrNop(l).Named("controller") }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller is the break/continue/cancel primitive shared by every goroutine
// of one run.
//
// While a break is active the broke channel is closed and continued is open;
// otherwise broke is open. Closing a channel wakes every waiter at once, and
// each wait is additionally bounded by the cycle time.
type Controller struct {
	cycleTime time.Duration
	log       *zap.Logger
	metrics   *Metrics

	mu        sync.Mutex
	atBreak   bool
	continued chan struct{}
	broke     chan struct{}
	ret       any
	done      chan struct{}
	ctx       context.Context
	cancelCtx context.CancelFunc

	canceled atomic.Bool
	exitCode atomic.Int32
}

// New returns a Controller in the idle, not-canceled state.
func New(opts ...Option) *Controller {
	c := &Controller{
		cycleTime: DefaultCycleTime,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset()
	return c
}

// Configure reads cycle-time-ms.
func (c *Controller) Configure(node *param.Node) error {
	if node == nil {
		return nil
	}
	ms, err := node.Uint("cycle-time-ms", uint(c.cycleTime/time.Millisecond))
	if err != nil {
		return err
	}
	if ms == 0 {
		return param.Errorf(node.Path(), "cycle-time-ms must be positive")
	}
	c.cycleTime = time.Duration(ms) * time.Millisecond
	c.log.Debug("configured", zap.Duration("cycle_time", c.cycleTime))
	return nil
}

// CycleTime returns the poll interval.
func (c *Controller) CycleTime() time.Duration { return c.cycleTime }

// Logger returns the controller's logger.
func (c *Controller) Logger() *zap.Logger { return c.log }

// Metrics returns the metrics sink, which may be nil.
func (c *Controller) Metrics() *Metrics { return c.metrics }

// Reset returns the controller to its initial state. It must not be called
// while a run is active.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.cancelCtx != nil {
		c.cancelCtx()
	}
	c.mu.Unlock()
	c.reset()
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.atBreak = false
	c.ret = nil
	c.continued = make(chan struct{})
	c.broke = make(chan struct{})
	c.done = make(chan struct{})
	c.ctx, c.cancelCtx = context.WithCancel(context.Background())
	c.canceled.Store(false)
	c.exitCode.Store(ExitSuccess)
}

// IsCanceled reports whether Cancel has been called.
func (c *Controller) IsCanceled() bool { return c.canceled.Load() }

// IsAtBreak reports whether a breakpoint is active.
func (c *Controller) IsAtBreak() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.atBreak
}

// ExitCode returns the code passed to the first Cancel.
func (c *Controller) ExitCode() int { return int(c.exitCode.Load()) }

// Context returns a context that is canceled when the run is canceled.
func (c *Controller) Context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Done returns a channel closed when the run is canceled.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// wait blocks until ch or done is closed, or one cycle elapses.
func (c *Controller) wait(ch, done <-chan struct{}) {
	timer := time.NewTimer(c.cycleTime)
	defer timer.Stop()
	select {
	case <-ch:
	case <-done:
	case <-timer.C:
	}
}

// WaitToContinue blocks while a break is active. It returns true when the
// caller should proceed and false when the run was canceled.
func (c *Controller) WaitToContinue() bool {
	c.mu.Lock()
	for c.atBreak && !c.canceled.Load() {
		ch, done := c.continued, c.done
		c.mu.Unlock()
		c.wait(ch, done)
		c.mu.Lock()
	}
	c.mu.Unlock()
	return !c.canceled.Load()
}

// WaitForBreakOrCanceled blocks until a break starts or the run is canceled.
// It returns true for a break and false for cancellation.
func (c *Controller) WaitForBreakOrCanceled() bool {
	c.mu.Lock()
	for !c.atBreak && !c.canceled.Load() {
		ch, done := c.broke, c.done
		c.mu.Unlock()
		c.wait(ch, done)
		c.mu.Lock()
	}
	atBreak := c.atBreak
	c.mu.Unlock()
	return atBreak && !c.canceled.Load()
}

// WaitForEndOfRun blocks until the run is canceled, waiting out every
// breakpoint hit on the way.
func (c *Controller) WaitForEndOfRun() {
	for c.WaitForBreakOrCanceled() {
		c.log.Info("paused at breakpoint; waiting to continue")
		c.WaitToContinue()
	}
	c.log.Debug("end of run", zap.Int("exit_code", c.ExitCode()))
}

// Continue clears the active break, if any, and wakes its waiters.
func (c *Controller) Continue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.atBreak {
		return
	}
	c.atBreak = false
	c.ret = nil
	close(c.continued)
	c.broke = make(chan struct{})
	c.log.Debug("continuing")
}

// Break starts a breakpoint. Breakpoints do not stack: if one is already
// active, Break waits for it to clear first.
func (c *Controller) Break() error {
	return c.doBreak(nil, false)
}

// BreakAndReturn starts a breakpoint and exposes ret (normally a pointer to
// the paused emission's argument) through Return and GetReturn until the next
// Continue.
func (c *Controller) BreakAndReturn(ret any) error {
	return c.doBreak(ret, true)
}

func (c *Controller) doBreak(ret any, withReturn bool) error {
	c.mu.Lock()
	for c.atBreak && !c.canceled.Load() {
		ch, done := c.continued, c.done
		c.mu.Unlock()
		c.wait(ch, done)
		c.mu.Lock()
	}
	if c.canceled.Load() {
		c.mu.Unlock()
		return fmt.Errorf("initiate breakpoint: %w", ErrCanceled)
	}
	c.atBreak = true
	if withReturn {
		c.ret = ret
	}
	close(c.broke)
	c.continued = make(chan struct{})
	c.mu.Unlock()

	c.metrics.breakpoint()
	c.log.Debug("breakpoint set", zap.Bool("with_return", withReturn))
	return nil
}

// Cancel ends the run with code and wakes every waiter. Only the first call
// has an effect.
func (c *Controller) Cancel(code int) {
	c.mu.Lock()
	if c.canceled.Load() {
		c.mu.Unlock()
		return
	}
	c.exitCode.Store(int32(code))
	c.canceled.Store(true)
	close(c.done)
	c.cancelCtx()
	c.mu.Unlock()

	c.metrics.canceled(code)
	c.log.Info("run canceled", zap.Int("exit_code", code))
}

// HasReturn reports whether a return value is set.
func (c *Controller) HasReturn() bool {
	_, ok := c.Return()
	return ok
}

// Return returns the value installed by the active BreakAndReturn.
func (c *Controller) Return() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ret, c.ret != nil
}

// ChainIsQuitting records that the chain name has finished with err. A
// cooperative quit is informational; any other error cancels the run with
// ExitError.
func (c *Controller) ChainIsQuitting(name string, err error) {
	switch {
	case err == nil:
		c.metrics.chainExit(OutcomeOK)
		c.log.Debug("chain finished", zap.String("chain", name))
	case errors.Is(err, ErrQuitChain):
		c.metrics.chainExit(OutcomeQuit)
		c.log.Info("chain quit", zap.String("chain", name), zap.String("reason", err.Error()))
	default:
		c.metrics.chainExit(OutcomeError)
		c.log.Error("chain failed; canceling run", zap.String("chain", name), zap.Error(err))
		c.Cancel(ExitError)
	}
}

// Returner exposes the value installed at a breakpoint.
type Returner interface {
	Return() (any, bool)
}

// GetReturn returns the breakpoint return value as a *T. It fails with
// ErrNoReturn when none is set and ErrReturnType when the value is not a *T.
func GetReturn[T any](r Returner) (*T, error) {
	if r == nil {
		return nil, ErrNoController
	}
	ret, ok := r.Return()
	if !ok {
		return nil, ErrNoReturn
	}
	p, ok := ret.(*T)
	if !ok {
		return nil, fmt.Errorf("%w: have %T, want %T", ErrReturnType, ret, (*T)(nil))
	}
	return p, nil
}

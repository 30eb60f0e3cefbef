// Package run executes a configured toolbox: the single-run controller
// drives the run queue group by group, and Nymph wires a whole run from one
// configuration document.
package run

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
)

var (
	// ErrRunActive is returned by StartRun while a run is in progress.
	ErrRunActive = errors.New("a run is already active")
	// ErrRunFailed is returned by Run when the run ended with a non-zero
	// exit code.
	ErrRunFailed = errors.New("run failed")
)

// SingleRunController runs the toolbox's run queue once per StartRun. Groups
// run one after another; the primaries of a group run concurrently, each on
// its own goroutine. A chain failing with anything other than a quit cancels
// the run and no later group is started.
type SingleRunController struct {
	*control.Controller

	toolbox *processor.Toolbox
	log     *zap.Logger
	ctlOpts []control.Option

	mu       sync.Mutex
	runID    string
	running  bool
	finished chan struct{}

	active atomic.Int64
}

// Option configures a SingleRunController.
type Option func(*SingleRunController)

// WithLogger sets the logger of the run controller and its controller.
func WithLogger(l *zap.Logger) Option {
	return func(s *SingleRunController) {
		s.log = logging.OrNop(l).Named("run")
		s.ctlOpts = append(s.ctlOpts, control.WithLogger(l))
	}
}

// WithControlOptions passes options to the embedded controller.
func WithControlOptions(opts ...control.Option) Option {
	return func(s *SingleRunController) { s.ctlOpts = append(s.ctlOpts, opts...) }
}

// New creates a run controller for tb and attaches itself to every processor
// in it.
func New(tb *processor.Toolbox, opts ...Option) *SingleRunController {
	s := &SingleRunController{toolbox: tb, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.Controller = control.New(s.ctlOpts...)
	tb.SetControl(s)
	return s
}

// Toolbox returns the toolbox being run.
func (s *SingleRunController) Toolbox() *processor.Toolbox { return s.toolbox }

// RunID returns the id of the current or last run.
func (s *SingleRunController) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Configure reads the controller settings and an optional run-queue that
// replaces the toolbox's.
func (s *SingleRunController) Configure(node *param.Node) error {
	if err := s.Controller.Configure(node); err != nil {
		return err
	}
	if !node.Has("run-queue") {
		return nil
	}
	arr, err := node.Array("run-queue")
	if err != nil {
		return err
	}
	s.toolbox.ClearRunQueue()
	return s.toolbox.ConfigureRunQueue(arr)
}

// StartRun launches the run on a new goroutine and returns immediately. The
// controller is reset if a previous run has finished; a Cancel issued before
// the first run stands, and that run ends without starting any group.
func (s *SingleRunController) StartRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Error("cannot start a run while one is active", zap.String("run_id", s.runID))
		return ErrRunActive
	}
	if s.finished != nil && s.IsCanceled() {
		s.Reset()
	}
	s.runID = uuid.NewString()
	s.running = true
	s.finished = make(chan struct{})

	queue := s.toolbox.RunQueue()
	log := s.log.With(zap.String("run_id", s.runID))
	log.Info("starting run", zap.Stringer("run_queue", queue))
	go s.supervise(queue, log, s.finished)
	return nil
}

func (s *SingleRunController) supervise(queue processor.RunQueue, log *zap.Logger, finished chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("run supervisor panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.Cancel(control.ExitError)
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(finished)
	}()

	for i, group := range queue {
		if s.IsCanceled() {
			log.Info("run canceled; skipping remaining groups", zap.Int("group", i))
			break
		}
		if !s.runGroup(i, group, log) {
			break
		}
	}
	log.Info("run finished")
	s.Cancel(control.ExitSuccess)
}

// runGroup runs every primary of group to completion and reports whether the
// run may continue with the next group.
func (s *SingleRunController) runGroup(index int, group processor.Group, log *zap.Logger) bool {
	log = log.With(zap.Int("group", index))
	log.Info("starting group", zap.Strings("processors", group.Names()))
	start := time.Now()
	ctx := s.Context()
	metrics := s.Metrics()

	errs := make([]error, len(group))
	var wg sync.WaitGroup
	s.active.Store(int64(len(group)))
	for j, e := range group {
		wg.Add(1)
		metrics.ChainStarted()
		go func() {
			defer wg.Done()
			defer metrics.ChainStopped()
			err := processor.Operate(ctx, e.Proc)
			errs[j] = err
			s.ChainIsQuitting(e.Name, err)
		}()
	}

	ticker := time.NewTicker(s.CycleTime())
	for s.active.Load() > 0 && !s.IsCanceled() {
		select {
		case <-ticker.C:
		case <-s.Done():
		}
	}
	ticker.Stop()
	wg.Wait()
	metrics.ObserveGroup(time.Since(start))

	ok := true
	for j, e := range group {
		switch err := errs[j]; {
		case err == nil:
			log.Info("processor exited normally", zap.String("processor", e.Name))
		case control.IsQuitChain(err):
			log.Info("processor quit", zap.String("processor", e.Name), zap.String("reason", err.Error()))
		default:
			log.Error("processor failed", zap.String("processor", e.Name), zap.Error(err))
			ok = false
		}
	}
	s.active.Store(0)
	return ok
}

// ChainIsQuitting records the end of a chain and counts it off the active
// group.
func (s *SingleRunController) ChainIsQuitting(name string, err error) {
	s.Controller.ChainIsQuitting(name, err)
	s.active.Add(-1)
}

// JoinRunThread blocks until the current run's goroutine has exited. It
// returns at once when no run was started.
func (s *SingleRunController) JoinRunThread() {
	s.mu.Lock()
	finished := s.finished
	s.mu.Unlock()
	if finished != nil {
		<-finished
	}
}

// Run starts a run and blocks until it is over. Breakpoints hit on the way
// must be continued by another goroutine.
func (s *SingleRunController) Run() error {
	if err := s.StartRun(); err != nil {
		return err
	}
	s.WaitForEndOfRun()
	s.JoinRunThread()
	if code := s.ExitCode(); code != control.ExitSuccess {
		return fmt.Errorf("%w: exit code %d", ErrRunFailed, code)
	}
	return nil
}

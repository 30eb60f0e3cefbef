package run

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
	"github.com/ravi-parthasarathy/nymph/pkg/service"
)

// BreakHandler is called once each time the run pauses at a breakpoint. It
// must eventually call Continue or Cancel on s, possibly from another
// goroutine after it returns.
type BreakHandler func(ctx context.Context, s *SingleRunController)

// Options adjusts a Nymph run.
type Options struct {
	Logger *zap.Logger
	// Registerer receives the run metrics; nil disables them.
	Registerer prometheus.Registerer
	// Registry builds processors; nil means processor.DefaultRegistry.
	Registry *processor.Registry
	// Services builds services; nil means service.DefaultRegistry.
	Services *service.Registry
	// CycleTime overrides the controller's default poll interval.
	CycleTime time.Duration
	// DryRun stops after configuration. A true dry-run key in the
	// configuration has the same effect.
	DryRun bool
	// OnBreak handles breakpoints; nil continues them with a log line.
	OnBreak BreakHandler
}

// Nymph configures services, processors, and the controller from cfg, runs
// the run queue, and returns the process exit code. Canceling ctx cancels the
// run with control.ExitError.
//
// Top-level keys: services, processors, connections, run-queue, controller,
// dry-run.
func Nymph(ctx context.Context, cfg *param.Node, opts Options) int {
	log := logging.OrNop(opts.Logger)

	src, services, err := Build(cfg, opts)
	if err != nil {
		log.Error("configuration failed", zap.Error(err))
		return control.ExitError
	}

	dryRun, err := cfg.Bool("dry-run", false)
	if err != nil {
		log.Error("configuration failed", zap.Error(err))
		return control.ExitError
	}
	if opts.DryRun || dryRun {
		log.Info("dry run: configuration is valid, not running",
			zap.Strings("processors", src.Toolbox().ProcessorNames()),
			zap.Stringer("run_queue", src.Toolbox().RunQueue()))
		return control.ExitSuccess
	}

	if err := services.StartAll(ctx); err != nil {
		log.Error("starting services failed", zap.Error(err))
		return control.ExitError
	}
	defer func() {
		if err := services.StopAll(context.WithoutCancel(ctx)); err != nil {
			log.Warn("stopping services failed", zap.Error(err))
		}
	}()

	if err := src.StartRun(); err != nil {
		log.Error("cannot start run", zap.Error(err))
		return control.ExitError
	}

	stop := context.AfterFunc(ctx, func() {
		log.Warn("interrupted; canceling run")
		src.Cancel(control.ExitError)
	})
	defer stop()

	onBreak := opts.OnBreak
	if onBreak == nil {
		onBreak = func(_ context.Context, s *SingleRunController) {
			log.Info("breakpoint reached; continuing")
			s.Continue()
		}
	}
	for src.WaitForBreakOrCanceled() {
		onBreak(ctx, src)
		src.WaitToContinue()
	}
	src.JoinRunThread()

	code := src.ExitCode()
	log.Info("nymph run complete", zap.String("run_id", src.RunID()), zap.Int("exit_code", code))
	return code
}

// Build creates the services, toolbox, and run controller described by cfg
// without starting anything.
func Build(cfg *param.Node, opts Options) (*SingleRunController, *service.Toolbox, error) {
	log := logging.OrNop(opts.Logger)

	svcOpts := []service.Option{service.WithLogger(log)}
	if opts.Services != nil {
		svcOpts = append(svcOpts, service.WithRegistry(opts.Services))
	}
	services := service.NewToolbox(svcOpts...)
	if err := services.Configure(cfg); err != nil {
		return nil, nil, err
	}

	tbOpts := []processor.ToolboxOption{processor.WithLogger(log), processor.WithServices(services)}
	if opts.Registry != nil {
		tbOpts = append(tbOpts, processor.WithRegistry(opts.Registry))
	}
	tb := processor.NewToolbox(tbOpts...)
	if err := tb.Configure(cfg); err != nil {
		return nil, nil, err
	}

	ctlOpts := []control.Option{control.WithCycleTime(opts.CycleTime)}
	if opts.Registerer != nil {
		ctlOpts = append(ctlOpts, control.WithMetrics(control.NewMetrics(opts.Registerer)))
	}
	src := New(tb, WithLogger(log), WithControlOptions(ctlOpts...))
	if cfg.Has("controller") {
		node, err := cfg.Node("controller")
		if err != nil {
			return nil, nil, err
		}
		if err := src.Configure(node); err != nil {
			return nil, nil, err
		}
	}
	return src, services, nil
}

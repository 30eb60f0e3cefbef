package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/nymph/pkg/config"
	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/logging"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor"
	"github.com/ravi-parthasarathy/nymph/pkg/run"
	"github.com/ravi-parthasarathy/nymph/pkg/service"

	// Register the built-in processors via their init() functions.
	_ "github.com/ravi-parthasarathy/nymph/pkg/processor/processors"
)

// exitError carries a run's exit code out of cobra.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("run ended with exit code %d", e.code) }

func main() {
	if err := rootCmd().Execute(); err != nil {
		if ee, ok := err.(*exitError); ok {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags override the NYMPH_* environment settings.
type globalFlags struct {
	logLevel string
	logDev   bool
}

func rootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "nymph",
		Short: "Nymph: signal/slot processing runner",
		Long: `Nymph builds processors from a YAML configuration, wires their signals
to slots, and runs the primary processors group by group.

Settings may also come from NYMPH_LOG_LEVEL, NYMPH_LOG_DEV,
NYMPH_CYCLE_TIME_MS, and NYMPH_METRICS_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.logDev, "log-dev", false, "human-readable development logging")

	root.AddCommand(runCmd(&g))
	root.AddCommand(lintCmd(&g))
	root.AddCommand(graphCmd(&g))
	root.AddCommand(typesCmd())
	return root
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd(g *globalFlags) *cobra.Command {
	var (
		dryRun       bool
		autoContinue bool
		cycleTime    time.Duration
		metricsFile  string
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Configure and execute a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-file") {
				settings.MetricsFile = metricsFile
			}
			if !cmd.Flags().Changed("cycle-time") {
				cycleTime = settings.CycleTime()
			}
			log, err := initLogger(settings)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg, err := param.LoadFile(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			opts := run.Options{
				Logger:     log,
				Registerer: reg,
				CycleTime:  cycleTime,
				DryRun:     dryRun,
			}
			if !autoContinue {
				opts.OnBreak = promptBreak(os.Stdin, cmd.OutOrStdout())
			}

			code := run.Nymph(signalContext(cmd.Context()), cfg, opts)
			if err := writeMetrics(settings.MetricsFile, reg); err != nil {
				log.Warn("writing metrics failed", zap.Error(err))
			}
			if code != control.ExitSuccess {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "configure everything, then exit without running")
	cmd.Flags().BoolVar(&autoContinue, "auto-continue", false, "continue breakpoints without prompting")
	cmd.Flags().DurationVar(&cycleTime, "cycle-time", control.DefaultCycleTime, "controller poll interval")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <config.yaml>",
		Short: "Validate a configuration without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := buildFromFile(cmd, g, args[0])
			if err != nil {
				return err
			}
			tb := src.Toolbox()
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d processors, %d connections, run queue: %s\n",
				len(tb.ProcessorNames()), len(tb.Connections()), tb.RunQueue())
			return nil
		},
	}
}

// ─── types ────────────────────────────────────────────────────────────────────

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the processor and service types that can be configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Processors:")
			for _, t := range processor.DefaultRegistry().Types() {
				fmt.Fprintf(out, "  %s\n", t)
			}
			fmt.Fprintln(out, "Services:")
			for _, t := range service.DefaultRegistry().Types() {
				fmt.Fprintf(out, "  %s\n", t)
			}
			return nil
		},
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func loadSettings(cmd *cobra.Command, g *globalFlags) (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		settings.LogLevel = g.logLevel
	}
	if cmd.Flags().Changed("log-dev") {
		settings.LogDev = g.logDev
	}
	return settings, nil
}

// initLogger builds the process logger from settings.
func initLogger(settings *config.Settings) (*zap.Logger, error) {
	log, err := logging.New(settings.Logging())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// buildFromFile loads and fully configures path without running it.
func buildFromFile(cmd *cobra.Command, g *globalFlags, path string) (*run.SingleRunController, error) {
	settings, err := loadSettings(cmd, g)
	if err != nil {
		return nil, err
	}
	log, err := initLogger(settings)
	if err != nil {
		return nil, err
	}
	cfg, err := param.LoadFile(path)
	if err != nil {
		return nil, err
	}
	src, _, err := run.Build(cfg, run.Options{Logger: log, CycleTime: settings.CycleTime()})
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return src, nil
}

// writeMetrics writes the gathered metrics to path. An empty path is a no-op.
func writeMetrics(path string, reg *prometheus.Registry) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[nymph] interrupted, canceling run")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

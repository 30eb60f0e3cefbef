package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ravi-parthasarathy/nymph/pkg/config"
	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/data"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor/processors"
	"github.com/ravi-parthasarathy/nymph/pkg/run"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// ─── commands ─────────────────────────────────────────────────────────────────

func TestLint_Valid(t *testing.T) {
	out, err := execute(t, "lint", "testdata/pipeline.yaml")
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if !strings.Contains(out, "OK: 4 processors, 3 connections, run queue: source") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestLint_Invalid(t *testing.T) {
	_, err := execute(t, "lint", "testdata/broken.yaml")
	if err == nil {
		t.Fatal("expected an error for mismatched signal and slot types")
	}
	if !strings.Contains(err.Error(), "pp:value") {
		t.Errorf("error should name the signal: %v", err)
	}
}

func TestLint_MissingFile(t *testing.T) {
	if _, err := execute(t, "lint", "testdata/nope.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestGraph_Text(t *testing.T) {
	out, err := execute(t, "graph", "testdata/pipeline.yaml")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	for _, want := range []string{"source:frame", "count:frame", "primary", "Run queue: source"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGraph_DOT(t *testing.T) {
	out, err := execute(t, "graph", "--format", "dot", "testdata/selfloop.yaml")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("expected a digraph, got:\n%s", out)
	}
	if !strings.Contains(out, "red") {
		t.Errorf("breakpoint edge should be red:\n%s", out)
	}
}

func TestGraph_BadFormat(t *testing.T) {
	if _, err := execute(t, "graph", "--format", "svg", "testdata/pipeline.yaml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "types")
	if err != nil {
		t.Fatalf("types: %v", err)
	}
	for _, want := range []string{processors.TypeDataQueue, processors.TypeFrameSource, "tally"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_WithMetrics(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "run.prom")
	if _, err := execute(t, "run", "--metrics-file", metrics, "testdata/pipeline.yaml"); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(got), `nymph_chain_exits_total{outcome="ok"} 1`) {
		t.Errorf("metrics missing chain exit:\n%s", got)
	}
}

func TestRun_AutoContinue(t *testing.T) {
	if _, err := execute(t, "run", "--auto-continue", "--cycle-time", "10ms", "testdata/selfloop.yaml"); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_DryRun(t *testing.T) {
	if _, err := execute(t, "run", "--dry-run", "testdata/selfloop.yaml"); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_ExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.yaml")
	if err := os.WriteFile(path, []byte("processors:\n  - type: fail\nrun-queue:\n  - fail\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "run", "--cycle-time", "10ms", path)
	ee, ok := err.(*exitError)
	if !ok {
		t.Fatalf("expected *exitError, got %T: %v", err, err)
	}
	if ee.code != control.ExitError {
		t.Errorf("exit code = %d, want %d", ee.code, control.ExitError)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func TestInitLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "DEBUG"} {
		s := config.Default()
		s.LogLevel = lvl
		if _, err := initLogger(s); err != nil {
			t.Errorf("initLogger(%q): unexpected error: %v", lvl, err)
		}
	}
	s := config.Default()
	s.LogLevel = "verbose"
	if _, err := initLogger(s); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	control.NewMetrics(reg).ChainStarted()

	if err := writeMetrics("", reg); err != nil {
		t.Fatalf("empty path must be a no-op: %v", err)
	}
	if err := writeMetrics("/nonexistent/dir/run.prom", reg); err == nil {
		t.Fatal("expected error writing to bad path")
	}
	path := filepath.Join(t.TempDir(), "run.prom")
	if err := writeMetrics(path, reg); err != nil {
		t.Fatalf("writeMetrics: %v", err)
	}
	got, _ := os.ReadFile(path)
	if !strings.Contains(string(got), "nymph_active_chains 1") {
		t.Errorf("unexpected metrics:\n%s", got)
	}
}

// pausedRun starts the self-loop configuration and waits for its breakpoint.
func pausedRun(t *testing.T) *run.SingleRunController {
	t.Helper()
	cfg, err := param.LoadFile("testdata/selfloop.yaml")
	if err != nil {
		t.Fatal(err)
	}
	s, _, err := run.Build(cfg, run.Options{CycleTime: control.DefaultCycleTime / 50})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.StartRun(); err != nil {
		t.Fatal(err)
	}
	if !s.WaitForBreakOrCanceled() {
		t.Fatal("run did not pause")
	}
	return s
}

func TestPromptBreak_Continue(t *testing.T) {
	s := pausedRun(t)
	var out bytes.Buffer
	handler := promptBreak(strings.NewReader("what\nc\n"), &out)
	handler(context.Background(), s)
	s.JoinRunThread()

	if s.ExitCode() != control.ExitSuccess {
		t.Errorf("exit code = %d", s.ExitCode())
	}
	if !strings.Contains(out.String(), "value: 10") {
		t.Errorf("prompt should show the paused value:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("prompt should reject unknown input:\n%s", out.String())
	}
	pp := s.Toolbox().GetProcessor("pp").(*processors.ValueSource)
	if pp.Stored() != 10 {
		t.Errorf("stored = %d, want 10", pp.Stored())
	}
}

func TestPromptBreak_Quit(t *testing.T) {
	s := pausedRun(t)
	promptBreak(strings.NewReader("q\n"), &bytes.Buffer{})(context.Background(), s)
	s.JoinRunThread()
	if s.ExitCode() != control.ExitError {
		t.Errorf("exit code = %d, want %d", s.ExitCode(), control.ExitError)
	}
}

func TestPromptBreak_EOF(t *testing.T) {
	s := pausedRun(t)
	promptBreak(strings.NewReader(""), &bytes.Buffer{})(context.Background(), s)
	s.JoinRunThread()
	if s.ExitCode() != control.ExitSuccess {
		t.Errorf("exit code = %d", s.ExitCode())
	}
}

func TestPromptBreak_Interrupted(t *testing.T) {
	s := pausedRun(t)
	in, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	returned := make(chan struct{})
	go func() {
		promptBreak(in, io.Discard)(ctx, s)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("prompt still waiting for input after interrupt")
	}
	if !s.IsAtBreak() {
		t.Error("interrupted prompt should not continue the run")
	}
	s.Cancel(control.ExitError)
	s.JoinRunThread()
}

func TestDescribeReturn(t *testing.T) {
	n := 7
	if got := describeReturn(&n); got != "7" {
		t.Errorf("describeReturn(&7) = %q", got)
	}
	f := data.NewFrame()
	f.Counter = 3
	if got := describeReturn(&f); !strings.HasPrefix(got, "frame #3") {
		t.Errorf("describeReturn(frame) = %q", got)
	}
}

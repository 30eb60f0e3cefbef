package run_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/nymph/pkg/control"
	"github.com/ravi-parthasarathy/nymph/pkg/param"
	"github.com/ravi-parthasarathy/nymph/pkg/processor/processors"
	"github.com/ravi-parthasarathy/nymph/pkg/run"
)

const cycle = 10 * time.Millisecond

func parse(t *testing.T, src string) *param.Node {
	t.Helper()
	node, err := param.ParseYAML([]byte(src))
	require.NoError(t, err)
	return node
}

func build(t *testing.T, src string, opts run.Options) *run.SingleRunController {
	t.Helper()
	if opts.CycleTime == 0 {
		opts.CycleTime = cycle
	}
	s, _, err := run.Build(parse(t, src), opts)
	require.NoError(t, err)
	return s
}

func valueSource(t *testing.T, s *run.SingleRunController, name string) *processors.ValueSource {
	t.Helper()
	v, ok := s.Toolbox().GetProcessor(name).(*processors.ValueSource)
	require.True(t, ok, name)
	return v
}

const selfLoop = `
processors:
  - type: value-source
    name: pp
    value: 10
connections:
  - signal: "pp:value"
    slot: "pp:value"
run-queue:
  - pp
`

func TestRun_SelfLoop(t *testing.T) {
	s := build(t, selfLoop, run.Options{})

	require.NoError(t, s.Run())
	assert.Equal(t, 10, valueSource(t, s, "pp").Stored())
	assert.True(t, s.IsCanceled())
	assert.Equal(t, control.ExitSuccess, s.ExitCode())
	assert.NotEmpty(t, s.RunID())
}

func TestRun_FailureHaltsLaterGroups(t *testing.T) {
	s := build(t, `
processors:
  - type: fail
    name: bad
  - type: value-source
    name: later
    value: 5
connections:
  - signal: "later:value"
    slot: "later:value"
run-queue:
  - bad
  - later
`, run.Options{})

	err := s.Run()
	require.ErrorIs(t, err, run.ErrRunFailed)
	assert.True(t, s.IsCanceled())
	assert.Equal(t, control.ExitError, s.ExitCode())
	assert.Equal(t, 0, valueSource(t, s, "later").Stored(), "second group must not start")
}

func TestRun_QuitDoesNotFail(t *testing.T) {
	s := build(t, `
processors:
  - type: frame-source
    name: src
    count: 10
  - type: quit-after
    name: q
    limit: 2
  - type: value-source
    name: later
    value: 3
connections:
  - signal: "src:frame"
    slot: "q:frame"
  - signal: "later:value"
    slot: "later:value"
run-queue:
  - src
  - later
`, run.Options{})

	require.NoError(t, s.Run())
	assert.Equal(t, 3, valueSource(t, s, "later").Stored())
}

func TestRun_ConcurrentGroup(t *testing.T) {
	s := build(t, `
processors:
  - type: value-source
    name: a
    value: 1
  - type: value-source
    name: b
    value: 2
connections:
  - signal: "a:value"
    slot: "a:value"
  - signal: "b:value"
    slot: "b:value"
run-queue:
  - [a, b]
`, run.Options{})

	require.NoError(t, s.Run())
	assert.Equal(t, 1, valueSource(t, s, "a").Stored())
	assert.Equal(t, 2, valueSource(t, s, "b").Stored())
}

func TestStartRun_WhileActive(t *testing.T) {
	s := build(t, `
processors:
  - type: wait
    duration: 10s
run-queue:
  - wait
`, run.Options{})

	require.NoError(t, s.StartRun())
	assert.ErrorIs(t, s.StartRun(), run.ErrRunActive)

	s.Cancel(control.ExitError)
	s.JoinRunThread()
	assert.Equal(t, control.ExitError, s.ExitCode())
}

func TestRun_Restart(t *testing.T) {
	s := build(t, selfLoop, run.Options{})
	require.NoError(t, s.Run())
	first := s.RunID()

	require.NoError(t, s.Run())
	assert.NotEqual(t, first, s.RunID())
	assert.Equal(t, control.ExitSuccess, s.ExitCode())
}

func TestStartRun_CanceledBeforeFirstRun(t *testing.T) {
	s := build(t, selfLoop, run.Options{})
	s.Cancel(control.ExitError)

	require.NoError(t, s.StartRun())
	s.JoinRunThread()
	assert.Equal(t, control.ExitError, s.ExitCode())
	assert.Equal(t, 0, valueSource(t, s, "pp").Stored())
}

func TestJoinRunThread_Idle(t *testing.T) {
	s := build(t, selfLoop, run.Options{})
	s.JoinRunThread()
}

func TestConfigure_RunQueueOverride(t *testing.T) {
	s := build(t, `
processors:
  - type: value-source
    name: a
  - type: value-source
    name: b
run-queue:
  - a
controller:
  cycle-time-ms: 20
  run-queue:
    - [a, b]
    - a
`, run.Options{})

	assert.Equal(t, 20*time.Millisecond, s.CycleTime())
	assert.Equal(t, "[a, b] -> a", s.Toolbox().RunQueue().String())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown processor type", "processors:\n  - type: nope\n"},
		{"unknown service type", "services:\n  - type: nope\n"},
		{"controller not a node", "controller: fast\n"},
		{"bad cycle time", "controller:\n  cycle-time-ms: 0\n"},
		{"non-primary in queue", "processors:\n  - type: counter\nrun-queue:\n  - counter\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run.Build(parse(t, tt.yaml), run.Options{})
			assert.Error(t, err)
		})
	}
}

func TestRun_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := build(t, `
processors:
  - type: value-source
    name: a
  - type: fail
    name: b
run-queue:
  - a
  - b
`, run.Options{Registerer: reg})

	require.Error(t, s.Run())
	m := s.Metrics()
	require.NotNil(t, m)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainExits.WithLabelValues(control.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainExits.WithLabelValues(control.OutcomeError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveChains))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GroupDuration))
}

// ─── Nymph ────────────────────────────────────────────────────────────────────

func TestNymph_Success(t *testing.T) {
	code := run.Nymph(t.Context(), parse(t, selfLoop), run.Options{CycleTime: cycle})
	assert.Equal(t, control.ExitSuccess, code)
}

func TestNymph_Failure(t *testing.T) {
	cfg := parse(t, "processors:\n  - type: fail\nrun-queue:\n  - fail\n")
	assert.Equal(t, control.ExitError, run.Nymph(t.Context(), cfg, run.Options{CycleTime: cycle}))
}

func TestNymph_ConfigError(t *testing.T) {
	cfg := parse(t, "processors:\n  - type: nope\n")
	assert.Equal(t, control.ExitError, run.Nymph(t.Context(), cfg, run.Options{}))
}

func TestNymph_DryRun(t *testing.T) {
	cfg := parse(t, "dry-run: true\nprocessors:\n  - type: fail\nrun-queue:\n  - fail\n")
	assert.Equal(t, control.ExitSuccess, run.Nymph(t.Context(), cfg, run.Options{}))

	cfg = parse(t, "processors:\n  - type: fail\nrun-queue:\n  - fail\n")
	assert.Equal(t, control.ExitSuccess, run.Nymph(t.Context(), cfg, run.Options{DryRun: true}))
}

func TestNymph_ContextCancel(t *testing.T) {
	cfg := parse(t, "processors:\n  - type: wait\n    duration: 10s\nrun-queue:\n  - wait\n")
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	code := run.Nymph(ctx, cfg, run.Options{CycleTime: cycle})
	assert.Equal(t, control.ExitError, code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNymph_Breakpoint(t *testing.T) {
	cfg := parse(t, `
processors:
  - type: value-source
    name: pp
    value: 10
connections:
  - signal: "pp:value"
    slot: "pp:value"
    breakpoint: true
run-queue:
  - pp
`)
	var pp *processors.ValueSource
	breaks := 0
	onBreak := func(_ context.Context, s *run.SingleRunController) {
		breaks++
		pp = s.Toolbox().GetProcessor("pp").(*processors.ValueSource)
		v, err := control.GetReturn[int](s)
		if assert.NoError(t, err) {
			*v = 99
		}
		s.Continue()
	}

	code := run.Nymph(t.Context(), cfg, run.Options{CycleTime: cycle, OnBreak: onBreak})
	assert.Equal(t, control.ExitSuccess, code)
	assert.Equal(t, 1, breaks)
	require.NotNil(t, pp)
	assert.Equal(t, 99, pp.Stored())
}

func TestNymph_BreakpointContinuedLater(t *testing.T) {
	cfg := parse(t, `
processors:
  - type: value-source
    name: pp
    value: 10
connections:
  - signal: "pp:value"
    slot: "pp:value"
    breakpoint: true
run-queue:
  - pp
`)
	var calls atomic.Int32
	onBreak := func(_ context.Context, s *run.SingleRunController) {
		calls.Add(1)
		go func() {
			time.Sleep(50 * time.Millisecond)
			s.Continue()
		}()
	}

	code := run.Nymph(t.Context(), cfg, run.Options{CycleTime: cycle, OnBreak: onBreak})
	assert.Equal(t, control.ExitSuccess, code)
	assert.Equal(t, int32(1), calls.Load())
}

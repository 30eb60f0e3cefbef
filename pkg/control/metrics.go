package control

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chain exit outcomes used as the "outcome" label.
const (
	OutcomeOK    = "ok"
	OutcomeQuit  = "quit"
	OutcomeError = "error"
)

// Metrics holds the run instrumentation. A nil *Metrics records nothing.
type Metrics struct {
	Breakpoints   prometheus.Counter
	Cancellations *prometheus.CounterVec
	ChainExits    *prometheus.CounterVec
	ActiveChains  prometheus.Gauge
	GroupDuration prometheus.Histogram
}

// NewMetrics creates the run metrics and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Breakpoints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "nymph",
			Name:      "breakpoints_total",
			Help:      "Number of breakpoints initiated.",
		}),
		Cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nymph",
			Name:      "cancellations_total",
			Help:      "Number of run cancellations by exit code.",
		}, []string{"code"}),
		ChainExits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nymph",
			Name:      "chain_exits_total",
			Help:      "Number of finished processing chains by outcome.",
		}, []string{"outcome"}),
		ActiveChains: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nymph",
			Name:      "active_chains",
			Help:      "Processing chains currently running.",
		}),
		GroupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nymph",
			Name:      "group_duration_seconds",
			Help:      "Wall time of each run-queue group.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) breakpoint() {
	if m == nil {
		return
	}
	m.Breakpoints.Inc()
}

func (m *Metrics) canceled(code int) {
	if m == nil {
		return
	}
	m.Cancellations.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) chainExit(outcome string) {
	if m == nil {
		return
	}
	m.ChainExits.WithLabelValues(outcome).Inc()
}

// ChainStarted increments the active chain gauge.
func (m *Metrics) ChainStarted() {
	if m == nil {
		return
	}
	m.ActiveChains.Inc()
}

// ChainStopped decrements the active chain gauge.
func (m *Metrics) ChainStopped() {
	if m == nil {
		return
	}
	m.ActiveChains.Dec()
}

// ObserveGroup records the duration of one run-queue group.
func (m *Metrics) ObserveGroup(d time.Duration) {
	if m == nil {
		return
	}
	m.GroupDuration.Observe(d.Seconds())
}

// Package metrics exposes the Prometheus instrumentation for the stake
// program: Dispatch records its own latency, and each Engine handler
// method records its variant on success or its error taxonomy code on
// failure. The handler algorithms do no logging or tracing of their own.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakeMetrics tracks instruction throughput and error taxonomy counts.
type StakeMetrics struct {
	instructions *prometheus.CounterVec
	errors       *prometheus.CounterVec
	history      prometheus.Histogram
}

var (
	once     sync.Once
	registry *StakeMetrics
)

// Stake returns the process-wide StakeMetrics registry, registering it with
// the default Prometheus registerer on first use.
func Stake() *StakeMetrics {
	once.Do(func() {
		registry = &StakeMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stake_program_instructions_total",
				Help: "Count of dispatched stake instructions by variant.",
			}, []string{"variant"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stake_program_errors_total",
				Help: "Count of failed instructions by error taxonomy code.",
			}, []string{"code"}),
			history: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "stake_program_dispatch_seconds",
				Help:    "Wall-clock time spent inside Dispatch per invocation.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(registry.instructions, registry.errors, registry.history)
	})
	return registry
}

// ObserveInstruction records a successfully routed instruction variant.
func (m *StakeMetrics) ObserveInstruction(variant string) {
	if m == nil {
		return
	}
	if variant == "" {
		variant = "unknown"
	}
	m.instructions.WithLabelValues(variant).Inc()
}

// ObserveError records a failed instruction keyed by its taxonomy code.
func (m *StakeMetrics) ObserveError(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.errors.WithLabelValues(code).Inc()
}

// ObserveDispatchSeconds records the wall-clock duration of one Dispatch call.
func (m *StakeMetrics) ObserveDispatchSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.history.Observe(seconds)
}

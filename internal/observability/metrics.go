// Package observability holds the prometheus instrument set for the runtime.
// Exporter and scrape wiring belong to the host process.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the instrument set owned by one runtime instance.
type Metrics struct {
	Turns           prometheus.Counter
	Iterations      prometheus.Counter
	Replans         prometheus.Counter
	ToolInvocations *prometheus.CounterVec
	ToolFailures    *prometheus.CounterVec
}

// NewMetrics registers the runtime instruments against reg. A nil reg uses a
// private registry, which keeps repeated construction (tests, one runtime per
// session) free of duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Turns: factory.NewCounter(prometheus.CounterOpts{
			Name: "corax_turns_total",
			Help: "User turns processed by the runtime.",
		}),
		Iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "corax_iterations_total",
			Help: "Reasoning loop iterations across all turns.",
		}),
		Replans: factory.NewCounter(prometheus.CounterOpts{
			Name: "corax_replans_total",
			Help: "Replanning passes triggered by task failures.",
		}),
		ToolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corax_tool_invocations_total",
			Help: "Tool invocations issued by the runtime.",
		}, []string{"tool"}),
		ToolFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corax_tool_failures_total",
			Help: "Tool invocations that returned an error observation.",
		}, []string{"tool"}),
	}
}

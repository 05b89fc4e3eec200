// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// setup shared by the advisor components.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/advisor/internal/executor"
)

// Metrics are the advisor's Prometheus collectors.
type Metrics struct {
	Runs         *prometheus.CounterVec
	PlanSteps    prometheus.Histogram
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec
	Queries      *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor",
			Name:      "runs_total",
			Help:      "Completed agent runs by flow and outcome.",
		}, []string{"flow", "outcome"}),
		PlanSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "advisor",
			Name:      "plan_steps",
			Help:      "Number of validated steps per plan.",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and status.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "advisor",
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor",
			Name:      "queries_total",
			Help:      "Natural-language queries by outcome (ok, rejected, error).",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "advisor",
			Name:      "run_duration_seconds",
			Help:      "End-to-end latency by flow.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"flow"}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.PlanSteps, m.ToolCalls, m.ToolDuration, m.Queries, m.RunDuration)
	}
	return m
}

// ExecutorMetrics adapts the collectors to the executor callbacks.
// Every call is counted; failures are counted again under status "error".
func (m *Metrics) ExecutorMetrics() executor.Metrics {
	if m == nil {
		return executor.Metrics{}
	}
	return executor.Metrics{
		Duration: func(ctx context.Context, tool string, d time.Duration) {
			m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
			m.ToolCalls.WithLabelValues(tool, "total").Inc()
		},
		Failure: func(ctx context.Context, tool string, err error) {
			m.ToolCalls.WithLabelValues(tool, "error").Inc()
		},
	}
}

// ObserveRun records the outcome of one plan or route run.
func (m *Metrics) ObserveRun(flow string, steps int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else {
		m.PlanSteps.Observe(float64(steps))
	}
	m.Runs.WithLabelValues(flow, outcome).Inc()
	m.RunDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// ObserveQuery records the outcome of one natural-language query.
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues("query").Observe(d.Seconds())
}

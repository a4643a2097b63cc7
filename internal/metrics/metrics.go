// Package metrics exposes Prometheus instrumentation for code execution.
//
// The executor packages know nothing about metrics. Instead, Metrics wraps an
// executor.Executor and an executor.StageRunner in decorators that observe every
// call, and serves the results from a private registry.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/vibecoding/internal/executor"
)

const namespace = "vibecoding"

// Stage outcomes used as the "outcome" label.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeTimedOut    = "timed_out"
	OutcomeStartFailed = "start_failed"
)

// Metrics owns the registry and the execution collectors.
type Metrics struct {
	registry          *prometheus.Registry
	executions        *prometheus.CounterVec
	executionDuration prometheus.Histogram
	stageRuns         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them, along with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executions by final status.",
		}, []string{"status"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock time of whole executions, build and run included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Stage runs by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock time of single stages.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.executions,
		m.executionDuration,
		m.stageRuns,
		m.stageDuration,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WrapExecutor returns an Executor that records every result of next.
func (m *Metrics) WrapExecutor(next executor.Executor) executor.Executor {
	return &observedExecutor{next: next, m: m}
}

// WrapRunner returns a StageRunner that records every stage run by next.
func (m *Metrics) WrapRunner(next executor.StageRunner) executor.StageRunner {
	return &observedRunner{next: next, m: m}
}

type observedExecutor struct {
	next executor.Executor
	m    *Metrics
}

func (o *observedExecutor) Execute(ctx context.Context, req executor.ExecutionRequest) executor.ExecutionResult {
	res := o.next.Execute(ctx, req)
	o.m.executions.WithLabelValues(string(res.Status)).Inc()
	o.m.executionDuration.Observe(res.Duration.Seconds())
	return res
}

type observedRunner struct {
	next executor.StageRunner
	m    *Metrics
}

func (o *observedRunner) Run(ctx context.Context, cmd executor.StageCommand) executor.StageResult {
	res := o.next.Run(ctx, cmd)
	o.m.stageRuns.WithLabelValues(cmd.Stage, stageOutcome(res)).Inc()
	o.m.stageDuration.WithLabelValues(cmd.Stage).Observe(res.Duration.Seconds())
	return res
}

func stageOutcome(res executor.StageResult) string {
	switch {
	case res.TimedOut:
		return OutcomeTimedOut
	case res.StartFailed:
		return OutcomeStartFailed
	case res.Succeeded:
		return OutcomeSucceeded
	default:
		return OutcomeFailed
	}
}

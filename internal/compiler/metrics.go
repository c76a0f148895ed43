package compiler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exports scheduler and model-call telemetry.
type PrometheusMetrics struct {
	taskDuration *prometheus.HistogramVec
	taskFailures *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	runRounds    prometheus.Histogram
	fallbacks    prometheus.Counter
}

// NewPrometheusMetrics registers the compiler collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "askgraph",
			Name:      "task_duration_seconds",
			Help:      "Tool invocation latency per plan step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "status"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "askgraph",
			Name:      "task_failures_total",
			Help:      "Tool invocations that ended with the failure marker.",
		}, []string{"tool"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "askgraph",
			Name:      "model_call_duration_seconds",
			Help:      "Language model call latency by role.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"role", "outcome"}),
		runRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "askgraph",
			Name:      "run_rounds",
			Help:      "Plan rounds used per answered question.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8},
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "askgraph",
			Name:      "fallback_answers_total",
			Help:      "Runs that ended with the fallback answer.",
		}),
	}
	for _, c := range []prometheus.Collector{m.taskDuration, m.taskFailures, m.callDuration, m.runRounds, m.fallbacks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SchedulerMetrics binds the collectors to scheduler callbacks.
func (m *PrometheusMetrics) SchedulerMetrics() Metrics {
	return Metrics{
		Duration: func(_ context.Context, t Task, d time.Duration) {
			m.taskDuration.WithLabelValues(t.Name, string(t.Status)).Observe(d.Seconds())
		},
		Failure: func(_ context.Context, t Task, _ error) {
			m.taskFailures.WithLabelValues(t.Name).Inc()
		},
	}
}

// ObserveCall records a model call; it satisfies CallObserver.
func (m *PrometheusMetrics) ObserveCall(role string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.callDuration.WithLabelValues(role, outcome).Observe(elapsed.Seconds())
}

// ObserveResult records a completed run.
func (m *PrometheusMetrics) ObserveResult(res Result) {
	m.runRounds.Observe(float64(len(res.Rounds)))
	if res.Fallback {
		m.fallbacks.Inc()
	}
}

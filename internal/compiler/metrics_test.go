package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsRecordRunsAndTasks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("NewPrometheusMetrics: %v", err)
	}
	if _, err := NewPrometheusMetrics(reg); err == nil {
		t.Fatalf("registering twice should fail")
	}

	sm := m.SchedulerMetrics()
	task := Task{Index: 1, Name: "search", Status: StatusFailed}
	sm.Failure(context.Background(), task, errors.New("boom"))
	sm.Duration(context.Background(), task, 20*time.Millisecond)
	if got := testutil.ToFloat64(m.taskFailures.WithLabelValues("search")); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}

	m.ObserveCall("planner", time.Second, nil)
	m.ObserveCall("joiner", time.Second, errors.New("timeout"))
	if n := testutil.CollectAndCount(m.callDuration); n != 2 {
		t.Fatalf("expected two call series, got %d", n)
	}

	m.ObserveResult(Result{Fallback: true, Rounds: make([]Round, 4)})
	m.ObserveResult(Result{Rounds: make([]Round, 1)})
	if got := testutil.ToFloat64(m.fallbacks); got != 1 {
		t.Fatalf("expected one fallback, got %v", got)
	}
}

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

func sampleResult() compiler.Result {
	g := compiler.Graph{
		1: {Index: 1, Name: "search", Args: []any{"Nvidia revenue 2024"}, Thought: "Look it up.",
			Observation: "60.9B", Observed: true, Status: compiler.StatusDone},
		2: {Index: 2, Name: "join", Dependencies: []int{1}, IsJoin: true, Status: compiler.StatusDone},
	}
	return compiler.Result{
		RunID:    "run-1",
		UserID:   "user-7",
		Question: "What was Nvidia's revenue?",
		Answer:   "About 60.9 billion dollars.",
		Rounds:   []compiler.Round{{Number: 1, Graph: g}},
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:  2 * time.Second,
	}
}

func TestFromResult(t *testing.T) {
	e := FromResult(sampleResult())
	if e.RunID != "run-1" || e.UserID != "user-7" || e.Rounds != 1 {
		t.Fatalf("unexpected entry header %+v", e)
	}
	if !e.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 7, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", e.Timestamp)
	}
	if len(e.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(e.Tasks))
	}
	if e.Tasks[0].Action != `search(Nvidia revenue 2024)` || e.Tasks[0].Observation != "60.9B" {
		t.Fatalf("unexpected first task %+v", e.Tasks[0])
	}
	if !e.Tasks[1].IsJoin || len(e.Tasks[1].Dependencies) != 1 {
		t.Fatalf("unexpected join task %+v", e.Tasks[1])
	}
}

func TestFromResultWithoutGraph(t *testing.T) {
	res := sampleResult()
	res.Rounds = []compiler.Round{{Number: 1, PlanError: "malformed"}}
	if e := FromResult(res); len(e.Tasks) != 0 || e.Tasks == nil {
		t.Fatalf("expected empty task list, got %#v", e.Tasks)
	}
}

type failingAuditor struct{ calls int }

func (f *failingAuditor) Record(context.Context, compiler.Result) error {
	f.calls++
	return errors.New("disk full")
}

func TestMultiRecordsEverySink(t *testing.T) {
	a, b := &failingAuditor{}, &failingAuditor{}
	err := Multi{a, nil, b}.Record(context.Background(), sampleResult())
	if err == nil || a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both sinks called and error joined, got %v (%d,%d)", err, a.calls, b.calls)
	}
}

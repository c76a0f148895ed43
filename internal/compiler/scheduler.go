package compiler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/askgraph/internal/tool"
)

// FailureObservation replaces the output of a task whose tool failed.
const FailureObservation = "ERROR"

// Scheduler runs a task graph with every ready task in flight at once.
type Scheduler struct {
	observer    Observer
	metrics     Metrics
	diag        Diagnostics
	taskTimeout time.Duration
}

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	Duration func(context.Context, Task, time.Duration)
	Failure  func(context.Context, Task, error)
}

// Option configures scheduler behaviour.
type Option func(*Scheduler)

// WithObserver sets the lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(s *Scheduler) {
		s.observer = obs
	}
}

// WithMetrics sets scheduler metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithSchedulerDiagnostics sets the scheduler's logger and tracer.
func WithSchedulerDiagnostics(d Diagnostics) Option {
	return func(s *Scheduler) {
		s.diag = d
	}
}

// WithTaskTimeout bounds each tool call. Zero means no deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.taskTimeout = d
	}
}

// NewScheduler creates a new Scheduler instance.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	if s.observer == nil {
		s.observer = NewNoopObserver()
	}
	s.diag = s.diag.withDefaults("[SCHEDULER] ")
	return s
}

type taskResult struct {
	index      int
	output     string
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// Schedule executes every task of g exactly once and returns when all of them
// are terminal. Tool failures become FailureObservation and never abort the
// graph; only a structurally invalid graph yields an error.
func (s *Scheduler) Schedule(ctx context.Context, runID string, g Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}
	// Buffered so tasks still in flight can deliver after an early return.
	results := make(chan taskResult, len(g))
	inflight := 0

	for {
		for _, idx := range g.Indices() {
			t := g[idx]
			if t.Status != StatusPending || !s.ready(g, t) {
				continue
			}
			if err := t.transition(StatusReady); err != nil {
				return err
			}
			if t.IsJoin {
				if err := s.completeJoin(ctx, runID, t); err != nil {
					return err
				}
				continue
			}
			if err := t.transition(StatusRunning); err != nil {
				return err
			}
			t.StartedAt = time.Now()
			if err := s.observer.TaskStarted(ctx, runID, *t); err != nil {
				s.diag.printf("observer start task %d: %v", t.Index, err)
			}
			s.diag.debugf("run %s: launching task %d %s", runID, t.Index, t.Action())
			inflight++
			go s.run(ctx, t.Index, t.Name, t.Tool, t.Args, t.StartedAt, results)
		}

		if inflight == 0 {
			break
		}
		res := <-results
		inflight--
		if err := s.finish(ctx, runID, g, res); err != nil {
			return err
		}
	}

	if !g.Done() {
		return fmt.Errorf("%w: tasks left without terminal status", ErrInvalidGraph)
	}
	return nil
}

// ready reports whether t may start. The join waits for every other task;
// the rest wait for their own dependencies. Failed tasks count as finished.
func (s *Scheduler) ready(g Graph, t *Task) bool {
	if t.IsJoin {
		for _, other := range g {
			if other != t && !other.Status.Terminal() {
				return false
			}
		}
		return true
	}
	for _, dep := range t.Dependencies {
		if !g[dep].Status.Terminal() {
			return false
		}
	}
	return true
}

func (s *Scheduler) completeJoin(ctx context.Context, runID string, t *Task) error {
	if err := t.transition(StatusRunning); err != nil {
		return err
	}
	t.StartedAt = time.Now()
	t.FinishedAt = t.StartedAt
	if err := t.transition(StatusDone); err != nil {
		return err
	}
	if err := s.observer.TaskFinished(ctx, runID, *t, nil); err != nil {
		s.diag.printf("observer finish join %d: %v", t.Index, err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, index int, name string, tl tool.Tool, args []any, started time.Time, results chan<- taskResult) {
	ctx, span := s.diag.Tracer.Start(ctx, "compiler.task", trace.WithAttributes(
		attribute.Int("task.index", index),
		attribute.String("task.name", name),
	))
	out, err := s.invoke(ctx, tl, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	results <- taskResult{index: index, output: out, err: err, startedAt: started, finishedAt: time.Now()}
}

func (s *Scheduler) invoke(ctx context.Context, tl tool.Tool, args []any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if refs := referencesIn(args); len(refs) > 0 {
		return "", fmt.Errorf("unresolved references %v", refs)
	}
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}
	return tl.Invoke(ctx, args)
}

func (s *Scheduler) finish(ctx context.Context, runID string, g Graph, res taskResult) error {
	t := g[res.index]
	t.FinishedAt = res.finishedAt
	var execErr error
	if res.err != nil {
		execErr = &ToolExecutionError{Step: t.Index, Name: t.Name, Err: res.err}
		t.observe(FailureObservation)
		if err := t.transition(StatusFailed); err != nil {
			return err
		}
		s.diag.printf("run %s: %v", runID, execErr)
		if s.metrics.Failure != nil {
			s.metrics.Failure(ctx, *t, execErr)
		}
	} else {
		t.observe(res.output)
		if err := t.transition(StatusDone); err != nil {
			return err
		}
	}
	if s.metrics.Duration != nil {
		s.metrics.Duration(ctx, *t, res.finishedAt.Sub(res.startedAt))
	}
	if err := s.observer.TaskFinished(ctx, runID, *t, execErr); err != nil {
		s.diag.printf("observer finish task %d: %v", t.Index, err)
	}

	for _, other := range g {
		if other.Status != StatusPending {
			continue
		}
		for _, dep := range other.Dependencies {
			if dep == t.Index {
				other.Args = substitute(other.Args, t.Index, t.Observation)
				break
			}
		}
	}
	return nil
}

package compiler

import "context"

// Observer receives task lifecycle events from the scheduler. Calls for one
// run are delivered from a single goroutine, in the order they happen.
type Observer interface {
	TaskStarted(ctx context.Context, runID string, task Task) error
	TaskFinished(ctx context.Context, runID string, task Task, err error) error
}

// NoopObserver is a default implementation that records nothing.
type NoopObserver struct{}

// NewNoopObserver returns an observer that does nothing.
func NewNoopObserver() *NoopObserver { return &NoopObserver{} }

func (NoopObserver) TaskStarted(ctx context.Context, runID string, task Task) error { return nil }
func (NoopObserver) TaskFinished(ctx context.Context, runID string, task Task, err error) error {
	return nil
}

// Observers fans events out to several observers. Every observer sees every
// event; the first error is returned.
type Observers []Observer

func (o Observers) TaskStarted(ctx context.Context, runID string, task Task) error {
	var first error
	for _, obs := range o {
		if err := obs.TaskStarted(ctx, runID, task); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (o Observers) TaskFinished(ctx context.Context, runID string, task Task, err error) error {
	var first error
	for _, obs := range o {
		if e := obs.TaskFinished(ctx, runID, task, err); e != nil && first == nil {
			first = e
		}
	}
	return first
}

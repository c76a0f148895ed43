package compiler

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPlan indicates plan text that holds no usable steps.
	ErrMalformedPlan = errors.New("malformed plan")
	// ErrUnknownTool indicates a step naming a tool that is not registered,
	// or referencing a step that does not exist.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrUnknownReference indicates a back-reference to a missing or later step.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrToolExecution wraps failures raised while invoking a tool.
	ErrToolExecution = errors.New("tool execution failed")
	// ErrInvalidGraph indicates a task graph that breaks its structural rules.
	ErrInvalidGraph = errors.New("invalid task graph")
	// ErrInvalidTransition is returned when a task status would move backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// MalformedPlanError describes why plan text could not be parsed.
type MalformedPlanError struct {
	Reason string
	Line   string
}

func (e *MalformedPlanError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("malformed plan: %s: %q", e.Reason, e.Line)
	}
	return "malformed plan: " + e.Reason
}

func (e *MalformedPlanError) Is(target error) bool { return target == ErrMalformedPlan }

// UnknownToolError names the step whose tool is not registered.
type UnknownToolError struct {
	Step int
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("step %d: unknown tool %q", e.Step, e.Name)
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// UnknownReferenceError names a step that refers to an output no earlier step
// produces. It matches both ErrUnknownReference and ErrUnknownTool.
type UnknownReferenceError struct {
	Step int
	Ref  int
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("step %d: reference $%d does not name an earlier step", e.Step, e.Ref)
}

func (e *UnknownReferenceError) Is(target error) bool {
	return target == ErrUnknownReference || target == ErrUnknownTool
}

// ToolExecutionError records a failed tool invocation. The scheduler never
// returns it; it is reported to observers and logs while the task observation
// carries the failure marker.
type ToolExecutionError struct {
	Step int
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

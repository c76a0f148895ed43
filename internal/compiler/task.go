package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/askgraph/internal/tool"
)

// Status tracks a task through one round of execution.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusReady},
	StatusReady:   {StatusRunning},
	StatusRunning: {StatusDone, StatusFailed},
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

// Task is one node of a plan.
type Task struct {
	Index        int
	Name         string
	Tool         tool.Tool
	Args         []any
	Dependencies []int
	Thought      string
	Observation  string
	Observed     bool
	IsJoin       bool
	Status       Status
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (t *Task) transition(to Status) error {
	for _, next := range allowedTransitions[t.Status] {
		if next == to {
			t.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: task %d %s -> %s", ErrInvalidTransition, t.Index, t.Status, to)
}

func (t *Task) observe(value string) {
	t.Observation = value
	t.Observed = true
}

// Action renders the invocation as it ran, with references already replaced.
// A single argument is rendered bare; several are rendered as a tuple.
func (t *Task) Action() string {
	if len(t.Args) == 1 {
		return fmt.Sprintf("%s(%s)", t.Name, formatValue(t.Args[0], false))
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = formatValue(a, true)
	}
	return fmt.Sprintf("%s(%s)", t.Name, strings.Join(parts, ", "))
}

func formatValue(v any, quote bool) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		if quote {
			return strconv.Quote(x)
		}
		return x
	case reference:
		return x.String()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e, true)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + formatValue(x[k], true)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(x)
	}
}

// Graph maps step index to task for a single plan round.
type Graph map[int]*Task

// Indices returns the step indices in ascending order.
func (g Graph) Indices() []int {
	out := make([]int, 0, len(g))
	for idx := range g {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Join returns the terminal join task, or nil when the graph has none.
func (g Graph) Join() *Task {
	for _, t := range g {
		if t.IsJoin {
			return t
		}
	}
	return nil
}

// Validate checks that every dependency points at an earlier task in the
// graph and that exactly one join exists at the highest index.
func (g Graph) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("%w: empty graph", ErrInvalidGraph)
	}
	joins := 0
	highest := 0
	for idx, t := range g {
		if t == nil {
			return fmt.Errorf("%w: nil task at %d", ErrInvalidGraph, idx)
		}
		if t.Index != idx {
			return fmt.Errorf("%w: task keyed %d reports index %d", ErrInvalidGraph, idx, t.Index)
		}
		if idx > highest {
			highest = idx
		}
		if t.IsJoin {
			joins++
		} else if t.Tool == nil {
			return fmt.Errorf("%w: task %d has no tool", ErrInvalidGraph, idx)
		}
		for _, dep := range t.Dependencies {
			if dep >= idx {
				return fmt.Errorf("%w: task %d depends on later task %d", ErrInvalidGraph, idx, dep)
			}
			if _, ok := g[dep]; !ok {
				return fmt.Errorf("%w: task %d depends on missing task %d", ErrInvalidGraph, idx, dep)
			}
		}
	}
	if joins != 1 {
		return fmt.Errorf("%w: expected one join, found %d", ErrInvalidGraph, joins)
	}
	if !g[highest].IsJoin {
		return fmt.Errorf("%w: join is not the final step", ErrInvalidGraph)
	}
	return nil
}

// Done reports whether every task reached a terminal status.
func (g Graph) Done() bool {
	for _, t := range g {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

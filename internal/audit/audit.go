// Package audit records finished runs: the executed tasks and the final answer.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

// TaskRecord is the persisted view of one executed task.
type TaskRecord struct {
	Index        int    `json:"task_id"`
	Name         string `json:"name"`
	Action       string `json:"action"`
	Dependencies []int  `json:"dependencies"`
	Args         []any  `json:"args"`
	Thought      string `json:"thought,omitempty"`
	Observation  string `json:"observation"`
	Status       string `json:"status"`
	IsJoin       bool   `json:"is_join"`
}

// Entry is one audited run.
type Entry struct {
	RunID       string       `json:"run_id"`
	UserID      string       `json:"user_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Question    string       `json:"question"`
	FinalAnswer string       `json:"final_answer"`
	Rounds      int          `json:"rounds"`
	Tasks       []TaskRecord `json:"data"`
}

// FromResult flattens the final round's graph into an Entry.
func FromResult(res compiler.Result) Entry {
	e := Entry{
		RunID:       res.RunID,
		UserID:      res.UserID,
		Timestamp:   res.Started.Add(res.Elapsed).UTC(),
		Question:    res.Question,
		FinalAnswer: res.Answer,
		Rounds:      len(res.Rounds),
		Tasks:       []TaskRecord{},
	}
	g := res.FinalGraph()
	for _, idx := range g.Indices() {
		t := g[idx]
		deps := t.Dependencies
		if deps == nil {
			deps = []int{}
		}
		args := t.Args
		if args == nil {
			args = []any{}
		}
		e.Tasks = append(e.Tasks, TaskRecord{
			Index:        t.Index,
			Name:         t.Name,
			Action:       t.Action(),
			Dependencies: deps,
			Args:         args,
			Thought:      t.Thought,
			Observation:  t.Observation,
			Status:       string(t.Status),
			IsJoin:       t.IsJoin,
		})
	}
	return e
}

// Multi records to every sink and joins their errors.
type Multi []compiler.Auditor

func (m Multi) Record(ctx context.Context, res compiler.Result) error {
	var errs []error
	for _, a := range m {
		if a == nil {
			continue
		}
		if err := a.Record(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

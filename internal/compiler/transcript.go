package compiler

import (
	"fmt"
	"strings"
)

// Transcript renders the thought, action and observation of every non-join
// task in index order. It is the only view of execution the joiner gets.
func Transcript(g Graph) string {
	var b strings.Builder
	for _, idx := range g.Indices() {
		t := g[idx]
		if t.IsJoin {
			continue
		}
		if t.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", t.Thought)
		}
		fmt.Fprintf(&b, "%s\n", t.Action())
		if t.Observed {
			fmt.Fprintf(&b, "Observation: %s\n", t.Observation)
		}
	}
	return strings.TrimSpace(b.String())
}

// ReplanContext summarises a finished round for the next planning request:
// the numbered steps with their observations, then the joiner's reasoning.
func ReplanContext(g Graph, joinThought string) string {
	var b strings.Builder
	for _, idx := range g.Indices() {
		t := g[idx]
		if t.IsJoin {
			continue
		}
		if t.Thought != "" {
			fmt.Fprintf(&b, "Thought: %s\n", t.Thought)
		}
		fmt.Fprintf(&b, "%d. %s\n", t.Index, t.Action())
		if t.Observed {
			fmt.Fprintf(&b, "Observation: %s\n", t.Observation)
		}
	}
	if joinThought != "" {
		fmt.Fprintf(&b, "Thought: %s\n", joinThought)
	}
	return strings.TrimSpace(b.String())
}

// FormatContexts folds previous rounds into the planner's context block.
func FormatContexts(contexts []string) string {
	if len(contexts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range contexts {
		fmt.Fprintf(&b, "Previous Plan:\n\n%s\n\n", c)
	}
	b.WriteString("Current Plan:\n\n")
	return b.String()
}

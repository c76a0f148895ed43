package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/askgraph/internal/tool"
)

// EndOfPlan is the stop token planners emit after the join step.
const EndOfPlan = "<END_OF_PLAN>"

// JoinName is the reserved step name that terminates a plan.
const JoinName = tool.ReservedName

// A step may be preceded by a single Thought line and followed by an inline
// #comment token.
var stepPattern = regexp.MustCompile(`(?:Thought: ([^\n]*)\n)?\n*(\d+)\. (\w+)\((.*)\)(\s*#\w+\n)?`)

// Parser turns planner output into a task graph bound to registered tools.
type Parser struct {
	registry *tool.Registry
}

// NewParser creates a parser resolving tool names against reg.
func NewParser(reg *tool.Registry) *Parser {
	return &Parser{registry: reg}
}

// Parse reads steps until the first join. A plan without a join gets one
// appended after its last step.
func (p *Parser) Parse(text string) (Graph, error) {
	matches := stepPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, &MalformedPlanError{Reason: "no steps found"}
	}
	g := make(Graph, len(matches)+1)
	last := 0
	for _, m := range matches {
		thought, rawIdx, name, argText := strings.TrimSpace(m[1]), m[2], m[3], m[4]
		line := strings.TrimSpace(strings.TrimPrefix(m[0], "Thought: "+m[1]))
		idx, err := strconv.Atoi(rawIdx)
		if err != nil || idx < 1 {
			return nil, &MalformedPlanError{Reason: "invalid step index", Line: line}
		}
		if idx <= last {
			return nil, &MalformedPlanError{Reason: "step indices must be unique and ascending", Line: line}
		}
		last = idx

		if name == JoinName {
			g[idx] = &Task{
				Index:        idx,
				Name:         JoinName,
				Dependencies: g.Indices(),
				Thought:      thought,
				IsJoin:       true,
				Status:       StatusPending,
			}
			return g, nil
		}

		t, ok := p.registry.Tool(name)
		if !ok {
			return nil, &UnknownToolError{Step: idx, Name: name}
		}
		args, err := parseArgs(argText)
		if err != nil {
			return nil, &MalformedPlanError{Reason: err.Error(), Line: line}
		}
		deps := referencesIn(args)
		for _, ref := range deps {
			if _, ok := g[ref]; !ok || ref >= idx {
				return nil, &UnknownReferenceError{Step: idx, Ref: ref}
			}
		}
		g[idx] = &Task{
			Index:        idx,
			Name:         name,
			Tool:         t,
			Args:         args,
			Dependencies: deps,
			Thought:      thought,
			Status:       StatusPending,
		}
	}

	g[last+1] = &Task{
		Index:        last + 1,
		Name:         JoinName,
		Dependencies: g.Indices(),
		IsJoin:       true,
		Status:       StatusPending,
	}
	return g, nil
}

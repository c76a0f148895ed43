package tool

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool is a capability a plan step can invoke by name.
// Implementations must be safe for concurrent use; several tasks of one plan
// may call the same tool at once.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, args []any) (string, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	ToolName string
	Desc     string
	Fn       func(ctx context.Context, args []any) (string, error)
}

func (f Func) Name() string        { return f.ToolName }
func (f Func) Description() string { return f.Desc }

func (f Func) Invoke(ctx context.Context, args []any) (string, error) {
	if f.Fn == nil {
		return "", fmt.Errorf("tool %s has no implementation", f.ToolName)
	}
	return f.Fn(ctx, args)
}

// ErrToolMissing indicates a required tool is not registered.
var ErrToolMissing = fmt.Errorf("required tool missing")

// ErrDuplicateTool is returned when two tools share a name.
var ErrDuplicateTool = fmt.Errorf("duplicate tool")

// ReservedName is the step name the planner uses for the terminal join.
const ReservedName = "join"

// Registry holds tools keyed by their exact name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry validates tools and ensures required tools exist.
func NewRegistry(tools []Tool, required []string) (*Registry, error) {
	reg := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if name == ReservedName {
			return nil, fmt.Errorf("tool name %q is reserved", ReservedName)
		}
		if _, ok := reg.tools[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		reg.tools[name] = t
		reg.order = append(reg.order, name)
	}
	for _, r := range required {
		if _, ok := reg.tools[r]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolMissing, r)
		}
	}
	return reg, nil
}

// Tool returns the tool registered under name.
func (r *Registry) Tool(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Describe renders the numbered tool list used in planner prompts, in
// registration order.
func (r *Registry) Describe() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for i, name := range r.order {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.tools[name].Description())
	}
	return b.String()
}

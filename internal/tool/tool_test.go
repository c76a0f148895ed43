package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func echoTool(name string) Tool {
	return Func{
		ToolName: name,
		Desc:     name + "(query: str) -> str",
		Fn: func(ctx context.Context, args []any) (string, error) {
			return name, nil
		},
	}
}

func TestNewRegistryEnforcesRequiredTools(t *testing.T) {
	if _, err := NewRegistry([]Tool{echoTool("search")}, []string{"search", "fetch"}); !errors.Is(err, ErrToolMissing) {
		t.Fatalf("expected missing tool error, got %v", err)
	}
}

func TestNewRegistryRejectsDuplicatesAndReservedNames(t *testing.T) {
	if _, err := NewRegistry([]Tool{echoTool("search"), echoTool("search")}, nil); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := NewRegistry([]Tool{echoTool("join")}, nil); err == nil {
		t.Fatalf("expected reserved name to be rejected")
	}
}

func TestRegistryLookupIsExact(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool("search"), echoTool("fetch")}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := reg.Tool("Search"); ok {
		t.Fatalf("lookup must be case sensitive")
	}
	tl, ok := reg.Tool("fetch")
	if !ok {
		t.Fatalf("expected fetch tool")
	}
	out, err := tl.Invoke(context.Background(), nil)
	if err != nil || out != "fetch" {
		t.Fatalf("unexpected invoke result %q %v", out, err)
	}
	if got := reg.Names(); len(got) != 2 || got[0] != "fetch" {
		t.Fatalf("unexpected names %v", got)
	}
	desc := reg.Describe()
	if !strings.HasPrefix(desc, "1. search(") || !strings.Contains(desc, "2. fetch(") {
		t.Fatalf("unexpected description:\n%s", desc)
	}
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	if _, ok := reg.Tool("search"); ok {
		t.Fatalf("nil registry should not resolve tools")
	}
	if reg.Len() != 0 || reg.Describe() != "" {
		t.Fatalf("nil registry should be empty")
	}
}

func TestFuncWithoutImplementation(t *testing.T) {
	if _, err := (Func{ToolName: "x"}).Invoke(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty func")
	}
}

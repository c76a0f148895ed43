package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/mohammad-safakhou/askgraph/config"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LLM: config.LLMConfig{
			Providers: map[string]config.LLMProvider{"main": {Type: "openai", APIKey: "sk-test"}},
			Routing:   config.LLMRoutingConfig{Planner: "main"},
		},
		Compiler: config.CompilerConfig{MaxReplan: 1, FormatAnswers: true},
		Tools:    config.ToolsConfig{Fetch: config.FetchConfig{Enabled: true, Timeout: time.Second}},
		Storage:  config.StorageConfig{Audit: config.AuditConfig{Dir: filepath.Join(t.TempDir(), "audit")}},
	}
}

func TestNewAppWiresCompiler(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), io.Discard)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()
	if a.compiler == nil || a.audits != nil {
		t.Fatalf("unexpected app %+v", a)
	}
	families, err := a.metrics.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) < 2 {
		t.Fatalf("expected compiler collectors to be registered, got %d families", len(families))
	}
}

func TestNewAppFailsWithoutTools(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools = config.ToolsConfig{}
	if _, err := newApp(context.Background(), cfg, io.Discard); err == nil {
		t.Fatalf("expected error with no tools")
	}
}

func TestPrintResult(t *testing.T) {
	color.NoColor = true
	g := compiler.Graph{
		1: {Index: 1, Name: "search", Args: []any{"x"}, Observation: "y", Observed: true, Status: compiler.StatusDone},
		2: {Index: 2, Name: "join", Dependencies: []int{1}, IsJoin: true, Status: compiler.StatusDone},
	}
	res := compiler.Result{
		RunID:  "r1",
		Answer: "the answer",
		Rounds: []compiler.Round{
			{Number: 1, PlanError: "malformed plan: no steps"},
			{Number: 2, Graph: g, Transcript: compiler.Transcript(g), Outcome: compiler.JoinOutcome{Decision: compiler.DecisionFinish}},
		},
	}
	var buf bytes.Buffer
	printResult(&buf, res, true)
	out := buf.String()
	for _, want := range []string{"Round 1", "plan error: malformed plan", "search(x)", "decision: finish", "the answer", "run r1, 2 round(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintGraph(t *testing.T) {
	color.NoColor = true
	g := compiler.Graph{
		1: {Index: 1, Name: "search", Args: []any{"x"}, Thought: "find it"},
		2: {Index: 2, Name: "join", Dependencies: []int{1}, IsJoin: true},
	}
	var buf bytes.Buffer
	printGraph(&buf, g)
	want := "   Thought: find it\n 1. search(x)\n 2. join()  <- [1]\n"
	if buf.String() != want {
		t.Fatalf("unexpected graph output:\n%q\nwant\n%q", buf.String(), want)
	}
}

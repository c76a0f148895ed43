package tools

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/askgraph/config"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
	"github.com/mohammad-safakhou/askgraph/internal/tool"
	"github.com/mohammad-safakhou/askgraph/tools/fetch"
	"github.com/mohammad-safakhou/askgraph/tools/search"
)

func allToolsConfig(t *testing.T) config.ToolsConfig {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return config.ToolsConfig{
		Search:    config.SearchConfig{Provider: "serper", APIKey: "k"},
		Fetch:     config.FetchConfig{Enabled: true},
		Documents: config.DocumentsConfig{Paths: []string{filepath.Join(dir, "*.txt")}},
	}
}

func TestBuildRegistersEnabledTools(t *testing.T) {
	reg, cleanup, err := Build(allToolsConfig(t), log.New(io.Discard, "", 0))
	defer cleanup()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"docsearch", "fetch", "search"}) {
		t.Fatalf("unexpected tools %v", got)
	}
}

func TestBuildRejectsEmptyToolset(t *testing.T) {
	_, cleanup, err := Build(config.ToolsConfig{}, nil)
	cleanup()
	if err == nil {
		t.Fatalf("expected error when no tools are enabled")
	}
}

func TestBuildRejectsUnknownSearchProvider(t *testing.T) {
	_, cleanup, err := Build(config.ToolsConfig{Search: config.SearchConfig{Provider: "bing"}}, nil)
	cleanup()
	if err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestDefaultPlannerExamplesParseAgainstBundledTools(t *testing.T) {
	reg, cleanup, err := Build(allToolsConfig(t), log.New(io.Discard, "", 0))
	defer cleanup()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	parser := compiler.NewParser(reg)
	for i, ex := range compiler.DefaultPlannerExamples {
		g, err := parser.Parse(ex.Plan)
		if err != nil {
			t.Fatalf("example %d: %v", i+1, err)
		}
		for _, idx := range g.Indices() {
			task := g[idx]
			if task.IsJoin {
				continue
			}
			declared := false
			for _, name := range ex.Tools {
				declared = declared || name == task.Name
			}
			if !declared {
				t.Fatalf("example %d calls %s without declaring it", i+1, task.Name)
			}
		}
	}
	rendered := compiler.RenderPlannerExamples(compiler.DefaultPlannerExamples, reg)
	if got := strings.Count(rendered, "###"); got != len(compiler.DefaultPlannerExamples) {
		t.Fatalf("expected every example rendered, got %d", got)
	}
}

func TestPlannerExamplesSkipDisabledTools(t *testing.T) {
	cfg := allToolsConfig(t)
	cfg.Search = config.SearchConfig{}
	cfg.Fetch = config.FetchConfig{}
	reg, cleanup, err := Build(cfg, log.New(io.Discard, "", 0))
	defer cleanup()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rendered := compiler.RenderPlannerExamples(compiler.DefaultPlannerExamples, reg)
	if !strings.Contains(rendered, "docsearch(") || strings.Contains(rendered, "fetch(") || strings.Contains(rendered, "1. search(") {
		t.Fatalf("unexpected examples for docsearch-only registry:\n%s", rendered)
	}
}

type cannedSearcher []search.Result

func (c cannedSearcher) Discover(context.Context, string, int, []string) ([]search.Result, error) {
	return c, nil
}

type recordingRenderer struct{ links []string }

func (r *recordingRenderer) Render(_ context.Context, link string) (string, error) {
	r.links = append(r.links, link)
	return `<html><head><title>FOMC statement</title></head><body><article>
<p>Inflation has eased over the past year but remains elevated, and the Committee remains highly attentive to inflation risks.</p>
<p>The Committee decided to maintain the target range for the federal funds rate and will continue reducing its holdings of securities.</p>
</article></body></html>`, nil
}

func TestSearchThenFetchExampleExecutes(t *testing.T) {
	renderer := &recordingRenderer{}
	reg, err := tool.NewRegistry([]tool.Tool{
		search.Tool{Searcher: cannedSearcher{{Title: "FOMC statement", URL: "https://www.federalreserve.gov/fomc-statement", Snippet: "Statement text"}}},
		fetch.Tool{Fetcher: fetch.Fetcher{Renderer: renderer}},
	}, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	var plan string
	for _, ex := range compiler.DefaultPlannerExamples {
		if strings.Contains(ex.Plan, "fetch($1)") {
			plan = ex.Plan
		}
	}
	if plan == "" {
		t.Fatalf("no search then fetch example found")
	}
	g, err := compiler.NewParser(reg).Parse(plan)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := compiler.NewScheduler().Schedule(context.Background(), "run", g); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	fetched := g[2]
	if fetched.Status != compiler.StatusDone || !strings.Contains(fetched.Observation, "Inflation has eased") {
		t.Fatalf("fetch step did not succeed: %s %q", fetched.Status, fetched.Observation)
	}
	if len(renderer.links) != 1 || renderer.links[0] != "https://www.federalreserve.gov/fomc-statement" {
		t.Fatalf("unexpected fetched links %v", renderer.links)
	}
}

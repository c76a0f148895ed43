// Package search exposes web search as a plan tool.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher discovers up to k results for q, optionally restricted to sites.
type Searcher interface {
	Discover(ctx context.Context, q string, k int, sites []string) ([]Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewSearcher builds the provider-specific client.
func NewSearcher(provider Provider, apiKey string, timeout time.Duration) (Searcher, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	switch provider {
	case SerperProvider:
		return Serper{APIKey: apiKey, Client: client}, nil
	case BraveProvider:
		return Brave{APIKey: apiKey, Client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

const description = "search(entity: str) -> str:\n" +
	" - Executes an exact search for the entity on a web search engine.\n" +
	" - Returns related data from the web as titled snippets with their links.\n" +
	" - Always include the company, product or person name in the entity so that results are accurate.\n"

// Tool adapts a Searcher to the planner tool interface.
type Tool struct {
	Searcher   Searcher
	MaxResults int
	Sites      []string
}

func (Tool) Name() string        { return "search" }
func (Tool) Description() string { return description }

// Invoke runs a search for the first argument.
func (t Tool) Invoke(ctx context.Context, args []any) (string, error) {
	if len(args) == 0 {
		return "", errors.New("search requires a query")
	}
	q := strings.TrimSpace(fmt.Sprint(args[0]))
	if q == "" {
		return "", errors.New("search requires a query")
	}
	k := t.MaxResults
	if k <= 0 {
		k = 5
	}
	results, err := t.Searcher.Discover(ctx, q, k, t.Sites)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", q, err)
	}
	return Format(results), nil
}

// Format renders results as the observation text handed to the joiner.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

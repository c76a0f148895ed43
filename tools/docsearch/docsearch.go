// Package docsearch indexes local documents in memory and serves lexical
// search over them as a plan tool.
package docsearch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

const (
	chunkChars   = 1200
	snippetChars = 300
)

// Chunk is one indexed slice of a document.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Hit is a ranked search result.
type Hit struct {
	Chunk
	Score float64
	Rank  int
}

// Index is an in-memory BM25 index over document chunks.
type Index struct {
	mu     sync.RWMutex
	bleve  bleve.Index
	chunks map[string]Chunk
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, chunks: make(map[string]Chunk)}, nil
}

// Add splits text into paragraph-aligned chunks and indexes them under source.
func (x *Index) Add(source, text string) (int, error) {
	parts := split(text, chunkChars)
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, part := range parts {
		c := Chunk{ID: fmt.Sprintf("%s#%d", source, i), Source: source, Text: part}
		if err := x.bleve.Index(c.ID, c); err != nil {
			return i, fmt.Errorf("index %s: %w", c.ID, err)
		}
		x.chunks[c.ID] = c
	}
	return len(parts), nil
}

// AddFiles indexes every file matched by the glob patterns.
func (x *Index) AddFiles(patterns []string) (int, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return 0, fmt.Errorf("glob %q: %w", p, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	total := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return total, err
		}
		n, err := x.Add(filepath.Base(f), string(data))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Len reports the number of indexed chunks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Search returns up to k chunks matching q, best first.
func (x *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k, 0, false)
	res, err := x.bleve.Search(req)
	if err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		c, ok := x.chunks[h.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{Chunk: c, Score: h.Score, Rank: i + 1})
	}
	return out, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.bleve.Close()
}

func split(text string, limit int) []string {
	var out []string
	var cur strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para) > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func snippet(s string) string {
	if len(s) <= snippetChars {
		return s
	}
	return s[:snippetChars] + "..."
}

const description = "docsearch(query: str) -> str:\n" +
	" - Searches the local document collection for passages matching the query.\n" +
	" - Returns the best matching passages with their source file names.\n"

// Tool adapts an Index to the planner tool interface.
type Tool struct {
	Index      *Index
	MaxResults int
}

func (Tool) Name() string        { return "docsearch" }
func (Tool) Description() string { return description }

func (t Tool) Invoke(_ context.Context, args []any) (string, error) {
	if len(args) == 0 {
		return "", errors.New("docsearch requires a query")
	}
	q := strings.TrimSpace(fmt.Sprint(args[0]))
	if q == "" {
		return "", errors.New("docsearch requires a query")
	}
	hits, err := t.Index.Search(q, t.MaxResults)
	if err != nil {
		return "", fmt.Errorf("docsearch %q: %w", q, err)
	}
	if len(hits) == 0 {
		return "No matching documents.", nil
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s", h.Rank, h.Source, snippet(h.Text))
	}
	return b.String(), nil
}

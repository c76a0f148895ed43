package docsearch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSearchRanksMatchingChunk(t *testing.T) {
	idx := newTestIndex(t)
	if _, err := idx.Add("fruits.txt", "Apples are red and sweet.\n\nBananas are yellow."); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := idx.Add("cars.txt", "Electric vehicles use batteries."); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hits, err := idx.Search("batteries", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Source != "cars.txt" || hits[0].Rank != 1 {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestAddFilesGlob(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"a.md":  "Quarterly revenue was 42 billion.",
		"b.md":  "The board approved a buyback.",
		"c.txt": "ignored by the glob",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	idx := newTestIndex(t)
	n, err := idx.AddFiles([]string{filepath.Join(dir, "*.md")})
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if n != 2 || idx.Len() != 2 {
		t.Fatalf("expected 2 chunks, got %d/%d", n, idx.Len())
	}
}

func TestSplitKeepsParagraphsTogether(t *testing.T) {
	text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 10) + "\n\n" + strings.Repeat("c", 10)
	got := split(text, 25)
	if len(got) != 2 || got[0] != strings.Repeat("a", 10)+"\n\n"+strings.Repeat("b", 10) {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestToolInvoke(t *testing.T) {
	idx := newTestIndex(t)
	_, _ = idx.Add("notes.txt", "The launch date is March 3rd.")
	tl := Tool{Index: idx}
	out, err := tl.Invoke(context.Background(), []any{"launch"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.HasPrefix(out, "[1] notes.txt\n") {
		t.Fatalf("unexpected output %q", out)
	}
	out, _ = tl.Invoke(context.Background(), []any{"zebra"})
	if out != "No matching documents." {
		t.Fatalf("unexpected empty output %q", out)
	}
	if _, err := tl.Invoke(context.Background(), []any{" "}); err == nil {
		t.Fatalf("expected error for blank query")
	}
}

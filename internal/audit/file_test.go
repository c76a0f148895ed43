package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSinkWritesEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := (FileSink{Dir: dir}).Record(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one audit file, got %v (%v)", files, err)
	}
	name := files[0].Name()
	if strings.Contains(name, ":") || !strings.HasSuffix(name, "_user-7_run-1.json") {
		t.Fatalf("unexpected file name %q", name)
	}
	data, _ := os.ReadFile(filepath.Join(dir, name))
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["final_answer"] != "About 60.9 billion dollars." || got["user_id"] != "user-7" {
		t.Fatalf("unexpected document %v", got)
	}
	if tasks, _ := got["data"].([]any); len(tasks) != 2 {
		t.Fatalf("expected 2 tasks in data, got %v", got["data"])
	}
}

func TestFileSinkSkipsFallback(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()
	res.Fallback = true
	if err := (FileSink{Dir: dir}).Record(context.Background(), res); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if files, _ := os.ReadDir(dir); len(files) != 0 {
		t.Fatalf("fallback answers must not be audited, found %d files", len(files))
	}
}

package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMarkdownFormatter(t *testing.T) {
	m := &scriptedModel{replies: []string{"  **42**\n"}}
	out, err := MarkdownFormatter{Model: m}.Format(context.Background(), "42")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if out != "**42**" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(m.calls) != 1 || !strings.Contains(m.calls[0].Prompt, "Raw text:\n42") {
		t.Fatalf("unexpected request %+v", m.calls)
	}
}

func TestMarkdownFormatterSkipsBlank(t *testing.T) {
	m := &scriptedModel{}
	if out, _ := (MarkdownFormatter{Model: m}).Format(context.Background(), " "); out != " " || m.count() != 0 {
		t.Fatalf("blank answers should pass through without a model call")
	}
}

func TestMarkdownFormatterError(t *testing.T) {
	m := &scriptedModel{errs: []error{errors.New("quota")}}
	if _, err := (MarkdownFormatter{Model: m}).Format(context.Background(), "x"); err == nil {
		t.Fatalf("expected error")
	}
}

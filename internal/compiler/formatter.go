package compiler

import (
	"context"
	"fmt"
	"strings"
)

const markdownPrompt = `You convert text into Markdown.
Convert the provided text into Markdown syntax without omitting, altering or rephrasing any of its content.
- Use headings only where the text already has a title or section structure.
- Render enumerations as bullet or numbered lists.
- Render tabular data as Markdown tables.
- Keep numbers, units, names and links exactly as written.
Return only the Markdown, with no preamble.`

// MarkdownFormatter asks a model to re-render answers as Markdown.
type MarkdownFormatter struct {
	Model Model
}

func (f MarkdownFormatter) Format(ctx context.Context, answer string) (string, error) {
	if strings.TrimSpace(answer) == "" {
		return answer, nil
	}
	out, err := f.Model.Complete(ctx, Request{
		System: markdownPrompt,
		Prompt: fmt.Sprintf("Raw text:\n%s\n\nMarkdown format of raw text:\n", answer),
	})
	if err != nil {
		return "", fmt.Errorf("markdown formatting: %w", err)
	}
	return strings.TrimSpace(out), nil
}

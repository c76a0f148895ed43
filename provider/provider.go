package provider

import (
	"errors"
	"fmt"
	"os"

	"github.com/mohammad-safakhou/askgraph/config"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
	anthropic_provider "github.com/mohammad-safakhou/askgraph/provider/anthropic"
	openai_provider "github.com/mohammad-safakhou/askgraph/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// NewModel creates a model client for the named provider entry.
func NewModel(cfg config.LLMConfig, name string) (compiler.Model, error) {
	p, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("llm provider %q not configured", name)
	}
	switch Client(p.Type) {
	case OpenAI:
		apiKey := p.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai_provider.NewClient(openai_provider.Config{
			APIKey:      apiKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Timeout:     p.Timeout,
		})
	case Anthropic:
		return anthropic_provider.NewClient(anthropic_provider.Config{
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			Temperature: p.Temperature,
			MaxTokens:   int64(p.MaxTokens),
			Timeout:     p.Timeout,
		})
	default:
		return nil, errors.New("unsupported LLM provider: " + p.Type)
	}
}

// Models resolves the planner, joiner and optional formatter models from routing.
// The joiner falls back to the planner's provider.
func Models(cfg config.LLMConfig) (planner, joiner, formatter compiler.Model, err error) {
	planner, err = NewModel(cfg, cfg.Routing.Planner)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("planner: %w", err)
	}
	joinerName := cfg.Routing.Joiner
	if joinerName == "" || joinerName == cfg.Routing.Planner {
		joiner = planner
	} else if joiner, err = NewModel(cfg, joinerName); err != nil {
		return nil, nil, nil, fmt.Errorf("joiner: %w", err)
	}
	if cfg.Routing.Formatter != "" {
		if formatter, err = NewModel(cfg, cfg.Routing.Formatter); err != nil {
			return nil, nil, nil, fmt.Errorf("formatter: %w", err)
		}
	}
	return planner, joiner, formatter, nil
}

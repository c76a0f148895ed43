// Package tools builds the planner's tool registry from configuration.
package tools

import (
	"fmt"
	"log"
	"net/http"

	"github.com/mohammad-safakhou/askgraph/config"
	"github.com/mohammad-safakhou/askgraph/internal/tool"
	"github.com/mohammad-safakhou/askgraph/tools/docsearch"
	"github.com/mohammad-safakhou/askgraph/tools/fetch"
	"github.com/mohammad-safakhou/askgraph/tools/search"
)

// Build returns the registry of enabled tools and a cleanup func.
// Tools are registered search, fetch, docsearch so planner numbering is stable.
func Build(cfg config.ToolsConfig, logger *log.Logger) (*tool.Registry, func(), error) {
	if logger == nil {
		logger = log.Default()
	}
	var (
		list    []tool.Tool
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Search.Enabled() {
		s, err := search.NewSearcher(search.Provider(cfg.Search.Provider), cfg.Search.APIKey, cfg.Search.Timeout)
		if err != nil {
			return nil, cleanup, err
		}
		list = append(list, search.Tool{Searcher: s, MaxResults: cfg.Search.MaxResults, Sites: cfg.Search.Sites})
	}

	if cfg.Fetch.Enabled {
		var renderer fetch.Renderer = fetch.HTTPRenderer{
			Client:    &http.Client{Timeout: cfg.Fetch.Timeout},
			UserAgent: cfg.Fetch.UserAgent,
		}
		if cfg.Fetch.Headless {
			chrome := fetch.NewChromeRenderer(cfg.Fetch.UserAgent)
			closers = append(closers, chrome.Close)
			renderer = chrome
		}
		list = append(list, fetch.Tool{Fetcher: fetch.Fetcher{
			Renderer: renderer,
			Timeout:  cfg.Fetch.Timeout,
			MaxChars: cfg.Fetch.MaxChars,
		}})
	}

	if len(cfg.Documents.Paths) > 0 {
		idx, err := docsearch.NewIndex()
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = idx.Close() })
		n, err := idx.AddFiles(cfg.Documents.Paths)
		if err != nil {
			return nil, cleanup, fmt.Errorf("index documents: %w", err)
		}
		logger.Printf("indexed %d document chunks", n)
		list = append(list, docsearch.Tool{Index: idx, MaxResults: cfg.Documents.MaxResults})
	}

	if len(list) == 0 {
		return nil, cleanup, fmt.Errorf("no tools enabled")
	}
	reg, err := tool.NewRegistry(list, nil)
	if err != nil {
		return nil, cleanup, err
	}
	return reg, cleanup, nil
}

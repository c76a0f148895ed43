package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper queries google.serper.dev.
type Serper struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

func (s Serper) Discover(ctx context.Context, q string, k int, sites []string) ([]Result, error) {
	if len(sites) > 0 {
		filters := make([]string, len(sites))
		for i, site := range sites {
			filters[i] = "site:" + site
		}
		q = q + " (" + strings.Join(filters, " OR ") + ")"
	}
	body, err := json.Marshal(map[string]any{"q": q, "num": k})
	if err != nil {
		return nil, err
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = serperEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client(s.Client).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []Result
	items, _ := raw["organic"].([]any)
	for _, it := range items {
		if len(out) >= k {
			break
		}
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Result{Title: str(m["title"]), URL: str(m["link"]), Snippet: str(m["snippet"])})
	}
	return out, nil
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

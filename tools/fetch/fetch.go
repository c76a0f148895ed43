// Package fetch downloads a page and extracts its readable text for the planner.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const defaultUserAgent = "askgraph/1.0 (+https://github.com/mohammad-safakhou/askgraph)"

// Result is the extracted article.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	Text     string `json:"text"`
	HTMLHash string `json:"html_hash"`
	RenderMS int    `json:"render_ms"`
}

// Renderer returns the raw HTML for a link.
type Renderer interface {
	Render(ctx context.Context, link string) (string, error)
}

// HTTPRenderer fetches pages with a plain GET.
type HTTPRenderer struct {
	Client    *http.Client
	UserAgent string
}

func (r HTTPRenderer) Render(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	ua := r.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: status %d", link, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Fetcher renders a page and runs readability over it.
type Fetcher struct {
	Renderer Renderer
	Timeout  time.Duration
	MaxChars int
}

// Exec fetches link and returns its main content.
func (f Fetcher) Exec(ctx context.Context, link string) (Result, error) {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if link == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Result{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	t0 := time.Now()
	html, err := f.Renderer.Render(ctx, link)
	if err != nil {
		return Result{}, fmt.Errorf("render %s: %w", link, err)
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", link, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	sum := sha1.Sum([]byte(html))
	return Result{
		URL:      link,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		Text:     text,
		HTMLHash: hex.EncodeToString(sum[:]),
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

const description = "fetch(url: str) -> str:\n" +
	" - Downloads the web page at url and returns its title and main readable text.\n" +
	" - Use it on links returned by search when the snippet is not enough to answer.\n" +
	" - url may be the output of a search step, e.g. fetch($1); the first link in it is fetched.\n"

// Tool adapts a Fetcher to the planner tool interface.
type Tool struct {
	Fetcher Fetcher
}

func (Tool) Name() string        { return "fetch" }
func (Tool) Description() string { return description }

func (t Tool) Invoke(ctx context.Context, args []any) (string, error) {
	if len(args) == 0 {
		return "", errors.New("fetch requires a url")
	}
	res, err := t.Fetcher.Exec(ctx, pickLink(fmt.Sprint(args[0])))
	if err != nil {
		return "", err
	}
	if res.Title == "" {
		return res.Text, nil
	}
	return res.Title + "\n\n" + res.Text, nil
}

var linkPattern = regexp.MustCompile(`https?://[^\s()<>"']+`)

// pickLink returns text when it is a bare link, else the first link inside it.
func pickLink(text string) string {
	text = strings.TrimSpace(text)
	if !strings.ContainsAny(text, " \t\n") {
		return text
	}
	if l := linkPattern.FindString(text); l != "" {
		return l
	}
	return text
}

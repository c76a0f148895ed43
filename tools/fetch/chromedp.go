package fetch

import (
	"context"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer owns a long-lived headless Chrome context.
// Construct once; call Close on shutdown.
type ChromeRenderer struct {
	cancelAlloc   context.CancelFunc
	browser       context.Context
	cancelBrowser context.CancelFunc
}

// NewChromeRenderer starts a reusable headless browser.
func NewChromeRenderer(userAgent string) *ChromeRenderer {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBrowser := chromedp.NewContext(actx)
	return &ChromeRenderer{cancelAlloc: cancelAlloc, browser: bctx, cancelBrowser: cancelBrowser}
}

// Render opens link in a new tab and returns the document's outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, link string) (string, error) {
	tab, cancel := chromedp.NewContext(r.browser)
	defer cancel()
	// tie the tab to the caller's deadline
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tab,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return html, err
}

// Close tears down Chrome resources.
func (r *ChromeRenderer) Close() {
	if r.cancelBrowser != nil {
		r.cancelBrowser()
	}
	if r.cancelAlloc != nil {
		r.cancelAlloc()
	}
}

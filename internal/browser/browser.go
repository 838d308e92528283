// Package browser provides page sessions for scraping: a headless Chrome
// session for script-rendered storefronts and a plain HTTP session for
// server-rendered ones. Both expose the current page as a goquery document.
package browser

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Session modes.
const (
	ModeChrome = "chrome"
	ModeHTTP   = "http"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Session opens pages. A session is used by one scrape run at a time.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab (or its HTTP equivalent).
type Page interface {
	// Navigate loads url. The page is indeterminate after a failed navigation.
	Navigate(ctx context.Context, url string) error
	// URL returns the URL of the currently loaded document.
	URL() string
	// ScrollToBottom scrolls to the end of the document to trigger lazy loading.
	ScrollToBottom(ctx context.Context) error
	// Wait pauses for d to let dynamic content settle.
	Wait(ctx context.Context, d time.Duration) error
	// WaitFor blocks until selector is present or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Document snapshots the current DOM. Its Url is set to the page URL.
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// Options configures a session.
type Options struct {
	Mode            string
	Headless        bool
	UserAgent       string
	RateLimitPerSec float64
	RateBurst       int
	HTTPTimeout     time.Duration
	MaxBodyBytes    int64
}

// New opens a session for opts.Mode. A failure here means the scrape cannot
// start at all.
func New(ctx context.Context, opts Options) (Session, error) {
	switch opts.Mode {
	case ModeChrome, "":
		return NewChromeSession(ctx, opts)
	case ModeHTTP:
		return NewHTTPSession(opts), nil
	default:
		return nil, eris.Errorf("browser: unsupported mode %q", opts.Mode)
	}
}

func userAgent(opts Options) string {
	if opts.UserAgent != "" {
		return opts.UserAgent
	}
	return defaultUserAgent
}

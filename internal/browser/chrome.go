package browser

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/resilience"
)

// ChromeSession drives a headless Chrome instance via chromedp.
type ChromeSession struct {
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewChromeSession launches Chrome and verifies it started.
func NewChromeSession(ctx context.Context, opts Options) (*ChromeSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.UserAgent(userAgent(opts)),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, eris.Wrap(err, "browser: start chrome")
	}

	zap.L().Debug("browser: chrome session started", zap.Bool("headless", opts.Headless))

	return &ChromeSession{
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// NewPage opens a new tab.
func (s *ChromeSession) NewPage(_ context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, eris.Wrap(err, "browser: open tab")
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts down the browser.
func (s *ChromeSession) Close() error {
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	url string
}

// run executes actions on the tab, bounded by ctx's deadline and
// cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, target string) error {
	var loc string
	if err := p.run(ctx, chromedp.Navigate(target), chromedp.Location(&loc)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", target)
	}
	p.mu.Lock()
	p.url = loc
	p.mu.Unlock()
	return nil
}

func (p *chromePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	err := p.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
	return eris.Wrap(err, "browser: scroll")
}

func (p *chromePage) Wait(ctx context.Context, d time.Duration) error {
	return resilience.TimerSleep(ctx, d)
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return eris.Wrapf(err, "browser: wait for %q", selector)
}

func (p *chromePage) Document(ctx context.Context) (*goquery.Document, error) {
	var (
		html string
		loc  string
	)
	if err := p.run(ctx, chromedp.Location(&loc), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, eris.Wrap(err, "browser: snapshot document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse document")
	}
	if u, err := url.Parse(loc); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

package browser

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultMaxBody = 4 << 20

// HTTPSession fetches server-rendered pages over plain HTTP. Scrolling and
// waiting are no-ops because the whole document arrives in one response.
type HTTPSession struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBody   int64
}

// NewHTTPSession creates an HTTPSession with sensible defaults.
func NewHTTPSession(opts Options) *HTTPSession {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if opts.RateLimitPerSec > 0 {
		limit = rate.Limit(opts.RateLimitPerSec)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &HTTPSession{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:   rate.NewLimiter(limit, burst),
		userAgent: userAgent(opts),
		maxBody:   maxBody,
	}
}

func (s *HTTPSession) NewPage(_ context.Context) (Page, error) {
	return &httpPage{session: s}, nil
}

func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type httpPage struct {
	session *HTTPSession
	url     string
	body    []byte
}

func (p *httpPage) Navigate(ctx context.Context, target string) error {
	p.url, p.body = "", nil

	if err := p.session.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "browser: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return eris.Wrap(err, "browser: create request")
	}
	req.Header.Set("User-Agent", p.session.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.session.client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "browser: fetch %s", target)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.session.maxBody))
	if err != nil {
		return eris.Wrap(err, "browser: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return eris.Errorf("browser: blocked (%s) at %s", kind, target)
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("browser: status %d at %s", resp.StatusCode, target)
	}

	p.url = resp.Request.URL.String()
	p.body = body
	return nil
}

func (p *httpPage) URL() string { return p.url }

func (p *httpPage) ScrollToBottom(_ context.Context) error { return nil }

func (p *httpPage) Wait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func (p *httpPage) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	doc, err := p.Document(ctx)
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return eris.Errorf("browser: selector %q not present", selector)
	}
	return nil
}

func (p *httpPage) Document(_ context.Context) (*goquery.Document, error) {
	if p.body == nil {
		return nil, eris.New("browser: no document loaded")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse document")
	}
	if p.url != "" {
		if u, err := url.Parse(p.url); err == nil {
			doc.Url = u
		}
	}
	return doc, nil
}

func (p *httpPage) Close() error {
	p.body = nil
	return nil
}

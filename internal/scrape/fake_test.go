package scrape

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/browser"
)

// fakeSite is a browser.Session serving fixture HTML keyed by URL. It
// counts navigations and records waits instead of sleeping.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int // remaining failing attempts; -1 fails forever
	navs     map[string]int
	waits    []time.Duration
	scrolls  int
	opened   int
	closed   int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:    make(map[string]string),
		failures: make(map[string]int),
		navs:     make(map[string]int),
	}
}

func (s *fakeSite) serve(u, body string) *fakeSite {
	s.pages[u] = body
	return s
}

func (s *fakeSite) fail(u string, times int) *fakeSite {
	s.failures[u] = times
	return s
}

func (s *fakeSite) navCount(u string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navs[u]
}

func (s *fakeSite) NewPage(context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return &fakePage{site: s}, nil
}

func (s *fakeSite) Close() error { return nil }

type fakePage struct {
	site *fakeSite
	url  string
	body string
}

var errFakeNavigation = errors.New("net::ERR_CONNECTION_RESET")

func (p *fakePage) Navigate(_ context.Context, u string) error {
	s := p.site
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navs[u]++
	if n, ok := s.failures[u]; ok && n != 0 {
		if n > 0 {
			s.failures[u] = n - 1
		}
		return errFakeNavigation
	}
	body, ok := s.pages[u]
	if !ok {
		return errFakeNavigation
	}
	p.url = u
	p.body = body
	return nil
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) ScrollToBottom(context.Context) error {
	p.site.mu.Lock()
	p.site.scrolls++
	p.site.mu.Unlock()
	return nil
}

func (p *fakePage) Wait(_ context.Context, d time.Duration) error {
	p.site.mu.Lock()
	p.site.waits = append(p.site.waits, d)
	p.site.mu.Unlock()
	return nil
}

func (p *fakePage) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	doc, err := p.Document(context.Background())
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return errors.New("timeout")
	}
	return nil
}

func (p *fakePage) Document(context.Context) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.body))
	if err != nil {
		return nil, err
	}
	if p.url != "" {
		doc.Url, _ = url.Parse(p.url)
	}
	return doc, nil
}

func (p *fakePage) Close() error {
	p.site.mu.Lock()
	p.site.closed++
	p.site.mu.Unlock()
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func testNavigator() *Navigator {
	n := NewNavigator()
	n.Sleep = noSleep
	return n
}

func docFrom(html, pageURL string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	doc.Url, _ = url.Parse(pageURL)
	return doc
}

func testBrand(key string, quirks ...brand.Quirk) *brand.Config {
	return &brand.Config{
		Key:         key,
		DisplayName: "Test Brand",
		BaseURLs:    brand.URLList{"https://shop.example.com/collections/all"},
		Listing: brand.ListingConfig{
			CardSelector:  "a.product-card",
			LinkAttribute: "href",
		},
		ProductPage: brand.ProductPageConfig{
			NameSelector:        "h1.title",
			PriceSelector:       "span.price",
			DescriptionSelector: "div.description",
		},
		Quirks: brand.NewQuirkSet(quirks...),
	}
}

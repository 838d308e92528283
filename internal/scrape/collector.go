package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/browser"
)

// DefaultFallbackSelectors are tried in order when a brand's card selector
// matches nothing.
var DefaultFallbackSelectors = []string{
	`a.is--href-replaced`,
	`a[href*="/products/"]`,
}

// CollectorConfig holds listing-page timing and the fallback selector chain.
type CollectorConfig struct {
	ScrollCount       int
	ScrollWait        time.Duration
	ExtraScrollWait   time.Duration
	SelectorWait      time.Duration
	DynamicWait       time.Duration
	FallbackSelectors []string
}

// DefaultCollectorConfig returns the standard listing timings.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		ScrollCount:       3,
		ScrollWait:        2 * time.Second,
		ExtraScrollWait:   1 * time.Second,
		SelectorWait:      15 * time.Second,
		DynamicWait:       5 * time.Second,
		FallbackSelectors: DefaultFallbackSelectors,
	}
}

// Collector discovers product-detail URLs on a loaded listing page.
type Collector struct {
	cfg CollectorConfig
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig) *Collector {
	return &Collector{cfg: cfg}
}

// CollectProductURLs returns up to quota unique product URLs from the
// listing page in discovery order. A page with no resolvable URLs yields an
// empty result, never an error.
func (c *Collector) CollectProductURLs(ctx context.Context, b *brand.Config, page browser.Page, quota int) []string {
	return c.CollectNewProductURLs(ctx, b, page, quota, nil)
}

// CollectNewProductURLs is CollectProductURLs minus any URL already in seen.
// Seen URLs are dropped before the quota is applied, so they never consume it.
func (c *Collector) CollectNewProductURLs(ctx context.Context, b *brand.Config, page browser.Page, quota int, seen map[string]struct{}) []string {
	log := zap.L().With(zap.String("brand", b.Key), zap.String("url", page.URL()))
	if quota <= 0 {
		return nil
	}

	if b.Has(brand.QuirkScrollToLoad) {
		c.scroll(ctx, page, log)
	}

	primary := b.Listing.CardSelector
	if err := page.WaitFor(ctx, primary, c.cfg.SelectorWait); err != nil {
		log.Warn("scrape: timeout waiting for card selector",
			zap.String("selector", primary),
			zap.Error(err),
		)
	}
	if err := page.Wait(ctx, c.cfg.DynamicWait); err != nil {
		log.Debug("scrape: dynamic wait interrupted", zap.Error(err))
	}

	doc, err := page.Document(ctx)
	if err != nil {
		log.Error("scrape: snapshot listing page", zap.Error(err))
		return nil
	}

	cards, selector := c.matchCards(doc, primary, log)
	if cards == nil {
		log.Error("scrape: no product cards found for any selector")
		return nil
	}

	base := doc.Url
	if base == nil {
		base, _ = url.Parse(page.URL())
	}

	urls := newOrderedSet()
	strategy := b.LinkStrategy()
	cards.Each(func(i int, card *goquery.Selection) {
		u, err := resolveCardURL(card, strategy, base)
		if err != nil {
			log.Warn("scrape: card url extraction failed",
				zap.Int("card", i),
				zap.String("selector", selector),
				zap.Error(err),
			)
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		urls.Add(u)
	})

	out := urls.Items()
	if len(out) > quota {
		out = out[:quota]
	}
	if len(out) == 0 {
		log.Warn("scrape: no resolvable product urls on listing page")
	}
	log.Info("scrape: collected product urls",
		zap.Int("count", len(out)),
		zap.Int("remaining", quota),
	)
	return out
}

func (c *Collector) scroll(ctx context.Context, page browser.Page, log *zap.Logger) {
	for i := 0; i < c.cfg.ScrollCount; i++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			log.Warn("scrape: scroll failed", zap.Int("scroll", i+1), zap.Error(err))
			return
		}
		if err := page.Wait(ctx, c.cfg.ScrollWait+c.cfg.ExtraScrollWait); err != nil {
			return
		}
	}
}

// matchCards walks the selector chain and returns the first non-empty match
// set with the selector that produced it.
func (c *Collector) matchCards(doc *goquery.Document, primary string, log *zap.Logger) (*goquery.Selection, string) {
	chain := append([]string{primary}, c.cfg.FallbackSelectors...)
	for _, sel := range chain {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		cards := doc.Find(sel)
		if cards.Length() > 0 {
			log.Info("scrape: card selector matched",
				zap.String("selector", sel),
				zap.Int("count", cards.Length()),
			)
			return cards, sel
		}
		log.Warn("scrape: no product cards for selector", zap.String("selector", sel))
	}
	return nil, ""
}

// resolveCardURL reads the card's target URL with the brand's link strategy
// and resolves it against base.
func resolveCardURL(card *goquery.Selection, strategy string, base *url.URL) (string, error) {
	var (
		href string
		ok   bool
	)
	if strategy == brand.LinkParentAnchor {
		anchor := card.Closest("a")
		if anchor.Length() == 0 {
			return "", eris.New("no enclosing anchor")
		}
		href, ok = anchor.Attr("href")
	} else {
		href, ok = card.Attr(strategy)
	}
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", eris.Errorf("missing %s attribute", strategy)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", eris.Wrapf(err, "parse href %q", href)
	}
	if !ref.IsAbs() {
		if base == nil {
			return "", eris.Errorf("relative href %q without base url", href)
		}
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", eris.Errorf("unsupported link scheme %q", ref.Scheme)
	}
	return ref.String(), nil
}

// orderedSet deduplicates strings while preserving first-seen order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) Add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) Items() []string { return s.items }

// Package scrape drives config-described storefront scraping: retried
// navigation, listing collection with a selector fallback chain, and
// per-product field extraction.
package scrape

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/browser"
	"github.com/sells-group/brand-seo/internal/model"
)

var errNavigation = errors.New("navigation failed")

// Scraper scrapes one brand at a time through a browser session. Pages are
// processed sequentially, one open product page at a time.
type Scraper struct {
	session   browser.Session
	navigator *Navigator
	collector *Collector
	extractor *Extractor
}

// New creates a Scraper.
func New(session browser.Session, nav *Navigator, collector *Collector, extractor *Extractor) *Scraper {
	return &Scraper{
		session:   session,
		navigator: nav,
		collector: collector,
		extractor: extractor,
	}
}

// ScrapeBrand walks the brand's base URLs in order until maxProducts records
// exist or every base URL is exhausted. Failures are recorded per URL and
// never abort the run.
func (s *Scraper) ScrapeBrand(ctx context.Context, run *RunContext, b *brand.Config, maxProducts int) *model.ScrapeResult {
	log := zap.L().With(zap.String("brand", b.Key), zap.String("run_id", run.ID))
	result := &model.ScrapeResult{
		Brand:      b.DisplayName,
		Records:    []model.ProductRecord{},
		FailedURLs: []string{},
	}
	// Product URLs already attempted this run. Listings often overlap.
	seen := make(map[string]struct{})

	for _, baseURL := range b.BaseURLs {
		if len(result.Records) >= maxProducts {
			break
		}
		if run.Stopped(ctx) {
			result.Stopped = true
			break
		}
		s.scrapeListing(ctx, run, b, baseURL, maxProducts, seen, result)
		if result.Stopped {
			break
		}
	}

	log.Info("scrape: brand run complete",
		zap.Int("records", len(result.Records)),
		zap.Int("failed", len(result.FailedURLs)),
		zap.Bool("stopped", result.Stopped),
	)
	return result
}

func (s *Scraper) scrapeListing(ctx context.Context, run *RunContext, b *brand.Config, baseURL string, maxProducts int, seen map[string]struct{}, result *model.ScrapeResult) {
	log := zap.L().With(zap.String("brand", b.Key), zap.String("listing", baseURL))

	page, err := s.session.NewPage(ctx)
	if err != nil {
		log.Error("scrape: open listing page", zap.Error(err))
		s.fail(ctx, run, result, baseURL, err)
		return
	}
	defer closePage(page, log)

	if !s.navigator.Navigate(ctx, page, baseURL) {
		s.fail(ctx, run, result, baseURL, errNavigation)
		return
	}

	remaining := maxProducts - len(result.Records)
	urls := s.collector.CollectNewProductURLs(ctx, b, page, remaining, seen)

	for i, productURL := range urls {
		if run.Stopped(ctx) {
			log.Info("scrape: stop requested, halting run", zap.Int("processed", i))
			result.Stopped = true
			return
		}
		seen[productURL] = struct{}{}

		rec, err := s.scrapeProduct(ctx, b, productURL)
		if err != nil {
			log.Warn("scrape: failed to scrape product",
				zap.String("url", productURL),
				zap.Error(err),
			)
			s.fail(ctx, run, result, productURL, err)
			continue
		}

		result.Records = append(result.Records, rec)
		run.record(ctx, rec)
		log.Info("scrape: scraped product",
			zap.Int("n", i+1),
			zap.Int("of", len(urls)),
			zap.String("url", productURL),
		)
	}
}

// scrapeProduct opens, loads and extracts a single product page.
func (s *Scraper) scrapeProduct(ctx context.Context, b *brand.Config, productURL string) (model.ProductRecord, error) {
	log := zap.L().With(zap.String("brand", b.Key), zap.String("url", productURL))

	page, err := s.session.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer closePage(page, log)

	if !s.navigator.Navigate(ctx, page, productURL) {
		return nil, errNavigation
	}

	rec, err := s.extractor.Extract(ctx, page, b)
	if err != nil {
		return nil, err
	}
	rec[model.FieldURL] = productURL
	rec[model.FieldBrand] = b.DisplayName
	return rec, nil
}

func (s *Scraper) fail(ctx context.Context, run *RunContext, result *model.ScrapeResult, url string, reason error) {
	result.FailedURLs = append(result.FailedURLs, url)
	run.failure(ctx, url, reason)
}

func closePage(page browser.Page, log *zap.Logger) {
	if err := page.Close(); err != nil {
		log.Debug("scrape: close page", zap.Error(err))
	}
}

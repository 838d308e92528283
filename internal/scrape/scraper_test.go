package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/model"
)

const (
	listingOne = "https://shop.example.com/collections/new"
	listingTwo = "https://shop.example.com/collections/sale"
)

func productPage(name, price string) string {
	return `<html><body><h1 class="title">` + name + `</h1><span class="price">` + price +
		`</span><div class="description">A ` + name + ` for every occasion.</div></body></html>`
}

func twoListingSite() *fakeSite {
	return newFakeSite().
		serve(listingOne, `<html><body>
			<a class="product-card" href="/products/good1">1</a>
			<a class="product-card" href="/products/broken">2</a>
		</body></html>`).
		serve(listingTwo, `<html><body>
			<a class="product-card" href="/products/good2">3</a>
			<a class="product-card" href="/products/good3">4</a>
		</body></html>`).
		serve("https://shop.example.com/products/good1", productPage("Lawn Suit", "PKR 9,990")).
		serve("https://shop.example.com/products/good2", productPage("Kurta", "Rs. 1,250.50")).
		serve("https://shop.example.com/products/good3", productPage("Shawl", "PKR 5,000")).
		fail("https://shop.example.com/products/broken", -1)
}

func newTestScraper(site *fakeSite) *Scraper {
	return New(site, testNavigator(), NewCollector(DefaultCollectorConfig()), NewExtractor(DefaultExtractorConfig()))
}

type recordingSink struct {
	mu       sync.Mutex
	records  []model.ProductRecord
	failures []string
	onRecord func()
}

func (s *recordingSink) OnRecord(_ context.Context, _ string, rec model.ProductRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	if s.onRecord != nil {
		s.onRecord()
	}
}

func (s *recordingSink) OnFailure(_ context.Context, _ string, url string, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, url)
}

func TestScrapeBrand_PartialSuccess(t *testing.T) {
	t.Parallel()
	site := twoListingSite()
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingOne, listingTwo}

	sink := &recordingSink{}
	run := NewRunContext("run-1", b.Key, WithSink(sink))

	res := newTestScraper(site).ScrapeBrand(context.Background(), run, b, 2)

	require.Len(t, res.Records, 2)
	assert.Equal(t, "Test Brand", res.Brand)
	assert.Equal(t, []string{"https://shop.example.com/products/broken"}, res.FailedURLs)
	assert.False(t, res.Stopped)

	assert.Equal(t, "https://shop.example.com/products/good1", res.Records[0].URL())
	assert.Equal(t, "9990", res.Records[0][model.FieldPrice])
	assert.Equal(t, "https://shop.example.com/products/good2", res.Records[1].URL())
	assert.Equal(t, "1250.5", res.Records[1][model.FieldPrice])
	for _, rec := range res.Records {
		assert.Equal(t, "Test Brand", rec.Brand())
	}

	assert.Equal(t, 3, site.navCount("https://shop.example.com/products/broken"))
	assert.Zero(t, site.navCount("https://shop.example.com/products/good3"))
	assert.Equal(t, site.opened, site.closed)

	assert.Len(t, sink.records, 2)
	assert.Equal(t, res.FailedURLs, sink.failures)
}

func TestScrapeBrand_StopsAtQuotaOnFirstListing(t *testing.T) {
	t.Parallel()
	site := twoListingSite()
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingTwo, listingOne}

	res := newTestScraper(site).ScrapeBrand(context.Background(), NewRunContext("run-2", b.Key), b, 2)

	require.Len(t, res.Records, 2)
	assert.Empty(t, res.FailedURLs)
	assert.Zero(t, site.navCount(listingOne))
}

func TestScrapeBrand_OverlappingListings(t *testing.T) {
	t.Parallel()
	site := twoListingSite().
		serve(listingTwo, `<html><body>
			<a class="product-card" href="/products/good1">dup</a>
			<a class="product-card" href="/products/broken">dup</a>
			<a class="product-card" href="/products/good2">3</a>
			<a class="product-card" href="/products/good3">4</a>
		</body></html>`)
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingOne, listingTwo}

	res := newTestScraper(site).ScrapeBrand(context.Background(), NewRunContext("run-dup", b.Key), b, 3)

	require.Len(t, res.Records, 3)
	urls := make(map[string]int)
	for _, rec := range res.Records {
		urls[rec.URL()]++
	}
	assert.Equal(t, map[string]int{
		"https://shop.example.com/products/good1": 1,
		"https://shop.example.com/products/good2": 1,
		"https://shop.example.com/products/good3": 1,
	}, urls)
	assert.Equal(t, 1, site.navCount("https://shop.example.com/products/good1"))
	assert.Equal(t, []string{"https://shop.example.com/products/broken"}, res.FailedURLs)
}

func TestScrapeBrand_FailedListing(t *testing.T) {
	t.Parallel()
	site := twoListingSite().fail(listingOne, -1)
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingOne, listingTwo}

	res := newTestScraper(site).ScrapeBrand(context.Background(), NewRunContext("run-3", b.Key), b, 50)

	assert.Equal(t, []string{listingOne}, res.FailedURLs)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "https://shop.example.com/products/good3", res.Records[1].URL())
}

func TestScrapeBrand_EmptyListing(t *testing.T) {
	t.Parallel()
	site := newFakeSite().serve(listingOne, `<html><body>coming soon</body></html>`)
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingOne}

	res := newTestScraper(site).ScrapeBrand(context.Background(), NewRunContext("run-4", b.Key), b, 50)

	assert.Empty(t, res.Records)
	assert.Empty(t, res.FailedURLs)
	assert.NotNil(t, res.Records)
}

func TestScrapeBrand_StopRequested(t *testing.T) {
	t.Parallel()
	site := twoListingSite()
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingTwo, listingOne}

	sink := &recordingSink{}
	run := NewRunContext("run-5", b.Key, WithSink(sink))
	sink.onRecord = run.Stop

	res := newTestScraper(site).ScrapeBrand(context.Background(), run, b, 50)

	assert.True(t, res.Stopped)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "https://shop.example.com/products/good2", res.Records[0].URL())
	assert.Zero(t, site.navCount("https://shop.example.com/products/good3"))
	assert.Zero(t, site.navCount(listingOne))
}

func TestScrapeBrand_StopProbe(t *testing.T) {
	t.Parallel()
	site := twoListingSite()
	b := testBrand("test")
	b.BaseURLs = brand.URLList{listingOne}

	calls := 0
	probe := func(context.Context, string) (bool, error) {
		calls++
		return calls > 1, nil
	}
	res := newTestScraper(site).ScrapeBrand(context.Background(), NewRunContext("run-6", b.Key, WithStopProbe(probe)), b, 50)

	// The first probe is the listing boundary; the second halts before any product.
	assert.True(t, res.Stopped)
	assert.Empty(t, res.Records)
}

func TestRunContext_Stopped(t *testing.T) {
	t.Parallel()

	run := NewRunContext("r", "b")
	assert.False(t, run.Stopped(context.Background()))
	run.Stop()
	assert.True(t, run.Stopped(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, NewRunContext("r", "b").Stopped(ctx))

	failing := NewRunContext("r", "b", WithStopProbe(func(context.Context, string) (bool, error) {
		return false, errors.New("db locked")
	}))
	assert.False(t, failing.Stopped(context.Background()))
}

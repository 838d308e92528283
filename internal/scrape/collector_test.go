package scrape

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/browser"
)

const listingURL = "https://shop.example.com/collections/all"

func loadedPage(t *testing.T, site *fakeSite, u, body string) browser.Page {
	t.Helper()
	site.serve(u, body)
	page, err := site.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, page.Navigate(context.Background(), u))
	return page
}

func TestCollector_PrimarySelector(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a class="product-card" href="/products/a">A</a>
		<a class="product-card" href="/products/b">B</a>
		<a class="product-card" href="https://shop.example.com/products/a">A again</a>
		<a class="product-card" href="https://cdn.example.com/products/c">C</a>
	</body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), testBrand("test"), page, 50)

	assert.Equal(t, []string{
		"https://shop.example.com/products/a",
		"https://shop.example.com/products/b",
		"https://cdn.example.com/products/c",
	}, urls)
}

func TestCollector_TruncatesToQuota(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a class="product-card" href="/products/1">1</a>
		<a class="product-card" href="/products/2">2</a>
		<a class="product-card" href="/products/3">3</a>
	</body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), testBrand("test"), page, 2)

	assert.Equal(t, []string{
		"https://shop.example.com/products/1",
		"https://shop.example.com/products/2",
	}, urls)
	assert.Empty(t, c.CollectProductURLs(context.Background(), testBrand("test"), page, 0))
}

func TestCollector_SkipsSeenBeforeQuota(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a class="product-card" href="/products/1">1</a>
		<a class="product-card" href="/products/2">2</a>
		<a class="product-card" href="/products/3">3</a>
	</body></html>`)

	seen := map[string]struct{}{"https://shop.example.com/products/1": {}}
	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectNewProductURLs(context.Background(), testBrand("test"), page, 2, seen)

	assert.Equal(t, []string{
		"https://shop.example.com/products/2",
		"https://shop.example.com/products/3",
	}, urls)
}

func TestCollector_FallbackChain(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<div class="grid">
			<a class="is--href-replaced" href="/products/x">X</a>
			<a class="is--href-replaced" href="/products/y">Y</a>
			<a class="is--href-replaced" href="/products/z">Z</a>
			<a href="/products/not-picked">fallback two would also match</a>
		</div>
	</body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), testBrand("test"), page, 50)

	require.Len(t, urls, 3)
	assert.Equal(t, "https://shop.example.com/products/x", urls[0])
	assert.Equal(t, "https://shop.example.com/products/z", urls[2])
}

func TestCollector_SecondFallback(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a href="/pages/about">About</a>
		<a href="/products/only">Only</a>
	</body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), testBrand("test"), page, 50)

	assert.Equal(t, []string{"https://shop.example.com/products/only"}, urls)
}

func TestCollector_NoCards(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body><p>Nothing here</p></body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	assert.Empty(t, c.CollectProductURLs(context.Background(), testBrand("test"), page, 50))
}

func TestCollector_ParentAnchorStrategy(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a href="/products/kurta"><div class="tile"><img src="k.jpg"></div></a>
		<a href="/products/shalwar"><div class="tile"><img src="s.jpg"></div></a>
		<div class="tile">orphan without anchor</div>
	</body></html>`)

	b := testBrand("khaadi")
	b.Listing = brand.ListingConfig{CardSelector: "div.tile", LinkAttribute: brand.LinkParentAnchor}

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), b, page, 50)

	assert.Equal(t, []string{
		"https://shop.example.com/products/kurta",
		"https://shop.example.com/products/shalwar",
	}, urls)
}

func TestCollector_CustomAttributeAndBadLinks(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<div class="card" data-url="/products/one"></div>
		<div class="card"></div>
		<div class="card" data-url="javascript:void(0)"></div>
		<div class="card" data-url="/products/two"></div>
	</body></html>`)

	b := testBrand("test")
	b.Listing = brand.ListingConfig{CardSelector: "div.card", LinkAttribute: "data-url"}

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), b, page, 50)

	assert.Equal(t, []string{
		"https://shop.example.com/products/one",
		"https://shop.example.com/products/two",
	}, urls)
}

func TestCollector_ScrollQuirk(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a class="product-card" href="/products/a">A</a>
	</body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	urls := c.CollectProductURLs(context.Background(), testBrand("outfitters", brand.QuirkScrollToLoad), page, 50)

	require.Len(t, urls, 1)
	assert.Equal(t, 3, site.scrolls)
	assert.Equal(t, []time.Duration{
		3 * time.Second, 3 * time.Second, 3 * time.Second,
		5 * time.Second,
	}, site.waits)
}

func TestCollector_NoScrollWithoutQuirk(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	page := loadedPage(t, site, listingURL, `<html><body>
		<a class="product-card" href="/products/a">A</a>
	</body></html>`)

	c := NewCollector(DefaultCollectorConfig())
	c.CollectProductURLs(context.Background(), testBrand("test"), page, 50)

	assert.Zero(t, site.scrolls)
	assert.Equal(t, []time.Duration{5 * time.Second}, site.waits)
}

func TestResolveCardURL(t *testing.T) {
	t.Parallel()
	doc := docFrom(`<html><body>
		<a id="rel" href="../products/p1">x</a>
		<a id="abs" href="http://other.example/p2">x</a>
		<a id="blank" href="  ">x</a>
		<a id="mail" href="mailto:shop@example.com">x</a>
	</body></html>`, "https://shop.example.com/collections/women/")

	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "rel", want: "https://shop.example.com/collections/products/p1"},
		{id: "abs", want: "http://other.example/p2"},
		{id: "blank", wantErr: true},
		{id: "mail", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := resolveCardURL(doc.Find("#"+tt.id), "href", doc.Url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

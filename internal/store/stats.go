package store

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// BrandStats is the product count and mean price of one stored brand.
type BrandStats struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
	// AvgPrice is rounded to two decimals. Nil when no row has a numeric price.
	AvgPrice *float64 `json:"avg_price"`
}

// PriceBucket counts products whose price falls in [Min, Max).
type PriceBucket struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// ProductStats summarises the products table per brand and by price band.
type ProductStats struct {
	Brands            []BrandStats  `json:"brand_stats"`
	PriceDistribution []PriceBucket `json:"price_distribution"`
}

// priceBuckets are the PKR bands used for the distribution.
func priceBuckets() []PriceBucket {
	return []PriceBucket{
		{Label: "< 5,000", Min: 0, Max: 5000},
		{Label: "5,000-8,000", Min: 5000, Max: 8000},
		{Label: "8,000-10,000", Min: 8000, Max: 10000},
		{Label: "10,000+", Min: 10000, Max: math.Inf(1)},
	}
}

// statsBuilder folds count and price rows into ProductStats. Both stores
// feed it so that price parsing is identical across drivers.
type statsBuilder struct {
	counts  map[string]int
	sums    map[string]float64
	priced  map[string]int
	buckets []PriceBucket
}

func newStatsBuilder() *statsBuilder {
	return &statsBuilder{
		counts:  make(map[string]int),
		sums:    make(map[string]float64),
		priced:  make(map[string]int),
		buckets: priceBuckets(),
	}
}

func (b *statsBuilder) addCount(brandName string, n int) {
	b.counts[brandName] += n
}

// addPrice records one stored price. Text that is not a finite number
// (including the literal "None") is ignored.
func (b *statsBuilder) addPrice(brandName, raw string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	b.sums[brandName] += v
	b.priced[brandName]++
	for i := range b.buckets {
		if v >= b.buckets[i].Min && v < b.buckets[i].Max {
			b.buckets[i].Count++
			break
		}
	}
}

func (b *statsBuilder) build() *ProductStats {
	names := make([]string, 0, len(b.counts))
	for name := range b.counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &ProductStats{Brands: make([]BrandStats, 0, len(names)), PriceDistribution: b.buckets}
	for _, name := range names {
		st := BrandStats{Brand: name, Count: b.counts[name]}
		if n := b.priced[name]; n > 0 {
			avg := math.Round(b.sums[name]/float64(n)*100) / 100
			st.AvgPrice = &avg
		}
		out.Brands = append(out.Brands, st)
	}
	return out
}

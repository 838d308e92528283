// Package analytics turns stored product descriptions into per-brand SEO
// analytics: keywords, averaged sub-scores and sample score sets.
package analytics

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/brand-seo/internal/model"
	"github.com/sells-group/brand-seo/internal/seo"
)

// Scope selects the uniqueness comparison corpus.
type Scope string

const (
	// ScopeBrand compares a description against its own brand's descriptions.
	ScopeBrand Scope = "brand"
	// ScopeAll compares against every stored description.
	ScopeAll Scope = "all"
)

// sampleSize is the number of raw score sets kept per brand.
const sampleSize = 3

// DescriptionSource supplies descriptions grouped by normalised brand name.
type DescriptionSource interface {
	BrandDescriptions(ctx context.Context) (map[string][]string, error)
}

// Options configures an Analyzer.
type Options struct {
	Scope        Scope
	Concurrency  int
	ArtifactPath string
}

// Analyzer runs a full scoring pass.
type Analyzer struct {
	source    DescriptionSource
	extractor KeywordExtractor
	cache     *KeywordCache
	scorer    *seo.Scorer
	opts      Options
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(source DescriptionSource, extractor KeywordExtractor, cache *KeywordCache, scorer *seo.Scorer, opts Options) *Analyzer {
	if opts.Scope == "" {
		opts.Scope = ScopeBrand
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Analyzer{
		source:    source,
		extractor: extractor,
		cache:     cache,
		scorer:    scorer,
		opts:      opts,
	}
}

// Run scores every brand with stored descriptions, rewrites the keyword
// cache and writes the analytics artifact when a path is configured.
func (a *Analyzer) Run(ctx context.Context) (map[string]model.BrandAnalytics, error) {
	byBrand, err := a.source.BrandDescriptions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: load descriptions")
	}

	var all []string
	if a.opts.Scope == ScopeAll {
		all = flatten(byBrand)
	}

	var (
		mu  sync.Mutex
		out = make(map[string]model.BrandAnalytics, len(byBrand))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for name, descs := range byBrand {
		if len(descs) == 0 {
			continue
		}
		g.Go(func() error {
			corpus := descs
			if a.opts.Scope == ScopeAll {
				corpus = all
			}
			res, err := a.analyzeBrand(gctx, name, descs, corpus)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := a.cache.Save(); err != nil {
		return nil, err
	}
	if a.opts.ArtifactPath != "" {
		if err := WriteArtifact(a.opts.ArtifactPath, out); err != nil {
			return nil, err
		}
	}

	zap.L().Info("analytics: scoring complete",
		zap.Int("brands", len(out)),
		zap.String("scope", string(a.opts.Scope)),
	)
	return out, nil
}

func (a *Analyzer) analyzeBrand(ctx context.Context, name string, descs, corpus []string) (model.BrandAnalytics, error) {
	keywords, err := a.keywords(ctx, name, descs)
	if err != nil {
		return model.BrandAnalytics{}, err
	}

	sets := make([]model.ScoreSet, len(descs))
	for i, d := range descs {
		sets[i] = a.scorer.Score(name, d, keywords, corpus)
	}

	zap.L().Debug("analytics: brand scored",
		zap.String("brand", name),
		zap.Int("count", len(descs)),
		zap.Int("keywords", len(keywords)),
	)
	return model.BrandAnalytics{
		Keywords:     keywords,
		AvgScores:    seo.Aggregate(sets),
		SampleScores: sets[:min(sampleSize, len(sets))],
	}, nil
}

// keywords returns cached keywords for the brand or extracts and caches them.
// A failed extraction is logged and scored with no keywords; it is not cached
// so the next run retries.
func (a *Analyzer) keywords(ctx context.Context, name string, descs []string) ([]string, error) {
	if kw, ok := a.cache.Get(name); ok {
		return kw, nil
	}
	kw, err := a.extractor.Extract(ctx, name, descs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "analytics: keyword extraction cancelled")
		}
		zap.L().Warn("analytics: keyword extraction failed, scoring without keywords",
			zap.String("brand", name), zap.Error(err))
		return []string{}, nil
	}
	if kw == nil {
		kw = []string{}
	}
	a.cache.Set(name, kw)
	return kw, nil
}

// WriteArtifact writes the per-brand analytics map as indented JSON.
func WriteArtifact(path string, analytics map[string]model.BrandAnalytics) error {
	return writeJSON(path, analytics)
}

func flatten(byBrand map[string][]string) []string {
	names := make([]string, 0, len(byBrand))
	for k := range byBrand {
		names = append(names, k)
	}
	sort.Strings(names)

	var out []string
	for _, n := range names {
		out = append(out, byBrand[n]...)
	}
	return out
}

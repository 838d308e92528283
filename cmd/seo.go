package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/analytics"
	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/config"
	"github.com/sells-group/brand-seo/internal/export"
	"github.com/sells-group/brand-seo/internal/model"
	"github.com/sells-group/brand-seo/internal/seo"
	"github.com/sells-group/brand-seo/pkg/anthropic"
)

var seoCmd = &cobra.Command{
	Use:   "seo",
	Short: "Score stored product descriptions per brand",
	Long:  "Extracts (or reuses cached) keywords for each brand, scores every stored description on five SEO sub-scores and writes the per-brand analytics artifact.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if scope, _ := cmd.Flags().GetString("scope"); scope != "" {
			cfg.SEO.UniquenessScope = scope
		}

		st, err := openStore(ctx, "seo")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg := loadRegistry(cfg.Brands.File)
		a := analytics.NewAnalyzer(st,
			keywordExtractor(cfg),
			analytics.LoadKeywordCache(cfg.SEO.KeywordCachePath),
			seo.NewScorer(mustHaveOverrides(reg)),
			analytics.Options{
				Scope:        analytics.Scope(cfg.SEO.UniquenessScope),
				Concurrency:  cfg.SEO.Concurrency,
				ArtifactPath: cfg.SEO.AnalyticsPath,
			},
		)

		results, err := a.Run(ctx)
		if err != nil {
			return err
		}
		for _, name := range unscoredBrands(reg, results) {
			zap.L().Info("seo: configured brand has no stored descriptions", zap.String("brand", name))
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := export.WriteAnalyticsXLSX(path, results); err != nil {
				return err
			}
		}

		formatAnalytics(os.Stdout, results)
		return nil
	},
}

func init() {
	seoCmd.Flags().String("scope", "", "uniqueness comparison scope: brand or all (default seo.uniqueness_scope)")
	seoCmd.Flags().String("xlsx", "", "also write a per-brand summary workbook to this path")
	rootCmd.AddCommand(seoCmd)
}

// keywordExtractor uses the Anthropic API when a key is configured and the
// local frequency extractor otherwise.
func keywordExtractor(c *config.Config) analytics.KeywordExtractor {
	if c.Anthropic.Key == "" {
		zap.L().Info("seo: no anthropic key configured, using frequency keywords")
		return analytics.FrequencyExtractor{TopN: c.SEO.FrequencyTopN}
	}
	return analytics.NewLLMExtractor(anthropic.NewClient(c.Anthropic.Key), c.Anthropic.Model, c.Anthropic.MaxTokens)
}

// loadRegistry reads the brand file if there is one. A missing or invalid
// file yields nil: scoring does not depend on brand descriptors.
func loadRegistry(path string) *brand.Registry {
	if path == "" {
		return nil
	}
	reg, err := brand.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("seo: brand file unreadable, using built-in vocabulary", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return reg
}

// mustHaveOverrides returns the brand-consistency vocabulary configured in
// the brand file.
func mustHaveOverrides(reg *brand.Registry) map[string][]string {
	if reg == nil {
		return nil
	}
	return reg.MustHaveKeywords()
}

// unscoredBrands lists configured brands that produced no analytics.
func unscoredBrands(reg *brand.Registry, results map[string]model.BrandAnalytics) []string {
	if reg == nil {
		return nil
	}
	var out []string
	for _, name := range reg.DisplayNames() {
		if _, ok := results[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// formatAnalytics writes one summary line per brand, ordered by name.
func formatAnalytics(out io.Writer, results map[string]model.BrandAnalytics) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "No descriptions to score.")
		return
	}

	names := make([]string, 0, len(results))
	for n := range results {
		names = append(names, n)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BRAND\tKW_DENSITY\tQUALITY\tCONSISTENCY\tUNIQUENESS\tREADABILITY\tKEYWORDS")
	for _, n := range names {
		a := results[n].AvgScores
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\n",
			n,
			a.KeywordDensity,
			a.ContentQuality,
			a.BrandConsistency,
			a.Uniqueness,
			a.Readability,
			len(results[n].Keywords),
		)
	}
	_ = w.Flush()
}


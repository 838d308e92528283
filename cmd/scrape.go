package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/browser"
	"github.com/sells-group/brand-seo/internal/config"
	"github.com/sells-group/brand-seo/internal/model"
	"github.com/sells-group/brand-seo/internal/scrape"
	"github.com/sells-group/brand-seo/internal/store"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <brand-key>",
	Short: "Scrape a brand's storefront into the product table",
	Long:  "Collects product URLs from every listing page of the brand, extracts each product page and appends the records to the product table. Partial success is reported, not treated as failure.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		reg, err := brand.Load(cfg.Brands.File)
		if err != nil {
			return err
		}
		b, err := reg.Get(args[0])
		if err != nil {
			return err
		}

		maxProducts, _ := cmd.Flags().GetInt("max-products")
		if maxProducts <= 0 {
			maxProducts = cfg.Scrape.MaxProducts
		}

		st, err := openStore(ctx, "scrape")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		session, err := browser.New(ctx, browserOptions(cfg))
		if err != nil {
			return fmt.Errorf("%w: %w", errBrowserInit, err)
		}
		defer session.Close() //nolint:errcheck

		scraper := scrape.New(session,
			navigatorFromConfig(cfg.Scrape),
			scrape.NewCollector(collectorConfig(cfg.Scrape)),
			scrape.NewExtractor(scrape.DefaultExtractorConfig()),
		)

		result, err := runScrape(ctx, st, scraper, b, maxProducts)
		if err != nil {
			return err
		}
		printScrapeSummary(os.Stdout, result)
		return nil
	},
}

var scrapeStopCmd = &cobra.Command{
	Use:   "stop <run-id>",
	Short: "Ask a running scrape to stop after its current product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, "stop")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.RequestStop(ctx, args[0]); err != nil {
			return eris.Wrap(err, "scrape stop")
		}
		fmt.Fprintf(os.Stdout, "Stop requested for run %s\n", args[0])
		return nil
	},
}

func init() {
	scrapeCmd.Flags().Int("max-products", 0, "product quota for this run (default scrape.max_products)")

	scrapeCmd.AddCommand(scrapeStopCmd)
	rootCmd.AddCommand(scrapeCmd)
}

// scrapeOutcome is what runScrape reports back to the caller.
type scrapeOutcome struct {
	Run     *model.ScrapeRun
	Result  *model.ScrapeResult
	Persist *store.PersistResult
}

// brandScraper is the part of scrape.Scraper runScrape depends on.
type brandScraper interface {
	ScrapeBrand(ctx context.Context, run *scrape.RunContext, b *brand.Config, maxProducts int) *model.ScrapeResult
}

// runScrape records a run, scrapes the brand, persists the records and
// closes the run with its final status. SIGINT and SIGTERM stop the scrape
// at the next product boundary; what was gathered is still persisted.
func runScrape(ctx context.Context, st store.Store, scraper brandScraper, b *brand.Config, maxProducts int) (*scrapeOutcome, error) {
	run, err := st.CreateRun(ctx, b.Key, maxProducts)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("brand", b.Key))
	log.Info("scrape: run started", zap.Int("max_products", maxProducts))

	sink := newRunProgress(st)
	rc := scrape.NewRunContext(run.ID, b.Key,
		scrape.WithStopProbe(st.StopRequested),
		scrape.WithSink(sink),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			log.Warn("scrape: interrupt received, stopping after current product")
			rc.Stop()
		case <-done:
		}
	}()

	result := scraper.ScrapeBrand(ctx, rc, b, maxProducts)

	// The scrape context may be cancelled; persistence still runs.
	persistCtx := context.WithoutCancel(ctx)
	persisted, perr := st.PersistProducts(persistCtx, result.Records)

	status := model.RunStatusFinished
	switch {
	case perr != nil:
		status = model.RunStatusFailed
	case result.Stopped:
		status = model.RunStatusStopped
	}
	if err := st.UpdateRun(persistCtx, run.ID, status, len(result.Records), len(result.FailedURLs)); err != nil {
		log.Error("scrape: update run status", zap.Error(err))
	}
	if perr != nil {
		return nil, eris.Wrap(perr, "scrape: persist products")
	}

	run.Status = status
	run.Scraped = len(result.Records)
	run.Failed = len(result.FailedURLs)
	log.Info("scrape: run complete",
		zap.String("status", string(status)),
		zap.Int("scraped", run.Scraped),
		zap.Int("failed", run.Failed),
		zap.Int("inserted", persisted.Inserted),
	)
	return &scrapeOutcome{Run: run, Result: result, Persist: persisted}, nil
}

// runProgress keeps the run row's counters current while a scrape is in
// flight so that `runs` shows live progress.
type runProgress struct {
	st store.Store

	mu      sync.Mutex
	scraped int
	failed  int
}

func newRunProgress(st store.Store) *runProgress {
	return &runProgress{st: st}
}

func (p *runProgress) OnRecord(ctx context.Context, runID string, _ model.ProductRecord) {
	p.mu.Lock()
	p.scraped++
	p.mu.Unlock()
	p.flush(ctx, runID)
}

func (p *runProgress) OnFailure(ctx context.Context, runID string, url string, reason error) {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
	zap.L().Warn("scrape: product failed",
		zap.String("run_id", runID), zap.String("url", url), zap.Error(reason))
	p.flush(ctx, runID)
}

func (p *runProgress) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scraped, p.failed
}

func (p *runProgress) flush(ctx context.Context, runID string) {
	scraped, failed := p.counts()
	if err := p.st.UpdateRun(ctx, runID, model.RunStatusRunning, scraped, failed); err != nil {
		zap.L().Debug("scrape: progress update failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func printScrapeSummary(w io.Writer, o *scrapeOutcome) {
	fmt.Fprintf(w, "Run %s (%s): %s\n", o.Run.ID, o.Result.Brand, o.Run.Status)
	fmt.Fprintf(w, "  scraped:  %d\n", len(o.Result.Records))
	fmt.Fprintf(w, "  inserted: %d\n", o.Persist.Inserted)
	if o.Persist.Filtered > 0 {
		fmt.Fprintf(w, "  filtered: %d\n", o.Persist.Filtered)
	}
	if len(o.Persist.AddedColumns) > 0 {
		fmt.Fprintf(w, "  new columns: %v\n", o.Persist.AddedColumns)
	}
	fmt.Fprintf(w, "  failed:   %d\n", len(o.Result.FailedURLs))
	for _, u := range o.Result.FailedURLs {
		fmt.Fprintf(w, "    %s\n", u)
	}
}

func browserOptions(c *config.Config) browser.Options {
	return browser.Options{
		Mode:            c.Browser.Mode,
		Headless:        c.Browser.Headless,
		UserAgent:       c.Browser.UserAgent,
		RateLimitPerSec: c.Browser.RateLimitPerSec,
		RateBurst:       c.Browser.RateBurst,
		HTTPTimeout:     time.Duration(c.Browser.HTTPTimeoutSecs) * time.Second,
	}
}

func navigatorFromConfig(c config.ScrapeConfig) *scrape.Navigator {
	n := scrape.NewNavigator()
	if c.NavAttempts > 0 {
		n.Attempts = c.NavAttempts
	}
	if c.NavBackoffSecs > 0 {
		n.Backoff = time.Duration(c.NavBackoffSecs) * time.Second
	}
	if c.NavTimeoutSecs > 0 {
		n.Timeout = time.Duration(c.NavTimeoutSecs) * time.Second
	}
	return n
}

func collectorConfig(c config.ScrapeConfig) scrape.CollectorConfig {
	cc := scrape.DefaultCollectorConfig()
	if c.ScrollCount > 0 {
		cc.ScrollCount = c.ScrollCount
	}
	if c.ScrollWaitMs > 0 {
		cc.ScrollWait = time.Duration(c.ScrollWaitMs) * time.Millisecond
	}
	if c.ExtraScrollWaitMs > 0 {
		cc.ExtraScrollWait = time.Duration(c.ExtraScrollWaitMs) * time.Millisecond
	}
	if c.SelectorWaitMs > 0 {
		cc.SelectorWait = time.Duration(c.SelectorWaitMs) * time.Millisecond
	}
	if c.DynamicWaitMs > 0 {
		cc.DynamicWait = time.Duration(c.DynamicWaitMs) * time.Millisecond
	}
	if len(c.FallbackSelectors) > 0 {
		cc.FallbackSelectors = c.FallbackSelectors
	}
	return cc
}

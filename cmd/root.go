package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/brand-seo/internal/brand"
	"github.com/sells-group/brand-seo/internal/config"
)

// Process exit statuses.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUnknownBrand = 2
	exitBrowserInit  = 3
)

var cfg *config.Config

// errBrowserInit marks a browser session that could not be started.
var errBrowserInit = errors.New("browser session did not initialise")

var rootCmd = &cobra.Command{
	Use:   "brandseo",
	Short: "Brand storefront scraper and SEO scorer",
	Long:  "Scrapes product listings from configured brand storefronts into a growing product table and scores product descriptions for SEO quality per brand.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, brand.ErrUnknownBrand):
		return exitUnknownBrand
	case errors.Is(err, errBrowserInit):
		return exitBrowserInit
	default:
		return exitFailure
	}
}

func main() {
	os.Exit(exitCode(rootCmd.Execute()))
}

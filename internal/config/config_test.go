package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "products.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "scrape_struct.json", cfg.Brands.File)
	assert.Equal(t, "chrome", cfg.Browser.Mode)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 50, cfg.Scrape.MaxProducts)
	assert.Equal(t, 3, cfg.Scrape.NavAttempts)
	assert.Equal(t, 2, cfg.Scrape.NavBackoffSecs)
	assert.Equal(t, 60, cfg.Scrape.NavTimeoutSecs)
	assert.Equal(t, 3, cfg.Scrape.ScrollCount)
	assert.Equal(t, 15000, cfg.Scrape.SelectorWaitMs)
	assert.Equal(t, 5000, cfg.Scrape.DynamicWaitMs)
	assert.Equal(t, []string{"a.is--href-replaced", `a[href*="/products/"]`}, cfg.Scrape.FallbackSelectors)
	assert.Equal(t, "seo_keywords.json", cfg.SEO.KeywordCachePath)
	assert.Equal(t, "output/seo_analytics.json", cfg.SEO.AnalyticsPath)
	assert.Equal(t, "brand", cfg.SEO.UniquenessScope)
	assert.Equal(t, 4, cfg.SEO.Concurrency)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(256), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/brands
browser:
  mode: http
scrape:
  max_products: 10
seo:
  uniqueness_scope: all
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/brands", cfg.Store.DatabaseURL)
	assert.Equal(t, "http", cfg.Browser.Mode)
	assert.Equal(t, 10, cfg.Scrape.MaxProducts)
	assert.Equal(t, "all", cfg.SEO.UniquenessScope)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Scrape.NavAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BRANDSEO_STORE_DRIVER", "sqlite")
	t.Setenv("BRANDSEO_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("BRANDSEO_SCRAPE_MAX_PRODUCTS", "5")
	t.Setenv("BRANDSEO_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scrape.MaxProducts)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "products.db"
	cfg.Brands.File = "scrape_struct.json"
	cfg.Browser.Mode = "chrome"
	cfg.Scrape.MaxProducts = 50
	cfg.Scrape.NavAttempts = 3
	cfg.SEO.UniquenessScope = "brand"
	cfg.SEO.Concurrency = 4
	cfg.SEO.KeywordCachePath = "seo_keywords.json"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, cmd := range []string{"scrape", "stop", "seo", "brands", "products", "export", "runs"} {
		assert.NoError(t, cfg.Validate(cmd), cmd)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_BrandsSkipsStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = ""
	assert.NoError(t, cfg.Validate("brands"))
}

func TestValidate_Scrape(t *testing.T) {
	cfg := validDefaults()
	cfg.Browser.Mode = "firefox"
	cfg.Scrape.MaxProducts = 0
	cfg.Scrape.NavAttempts = -1

	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.mode must be chrome or http")
	assert.Contains(t, err.Error(), "scrape.max_products must be positive")
	assert.Contains(t, err.Error(), "scrape.nav_attempts must be positive")
}

func TestValidate_SEO(t *testing.T) {
	cfg := validDefaults()
	cfg.SEO.UniquenessScope = "global"
	cfg.SEO.Concurrency = 0

	err := cfg.Validate("seo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seo.uniqueness_scope must be brand or all")
	assert.Contains(t, err.Error(), "seo.concurrency must be positive")
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Brands    BrandsConfig    `yaml:"brands" mapstructure:"brands"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	SEO       SEOConfig       `yaml:"seo" mapstructure:"seo"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BrandsConfig points at the brand descriptor file.
type BrandsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// BrowserConfig configures page sessions.
type BrowserConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"`
	Headless        bool    `yaml:"headless" mapstructure:"headless"`
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateBurst       int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	HTTPTimeoutSecs int     `yaml:"http_timeout_secs" mapstructure:"http_timeout_secs"`
}

// ScrapeConfig configures navigation, listing collection and the per-run
// product quota.
type ScrapeConfig struct {
	MaxProducts       int      `yaml:"max_products" mapstructure:"max_products"`
	NavAttempts       int      `yaml:"nav_attempts" mapstructure:"nav_attempts"`
	NavBackoffSecs    int      `yaml:"nav_backoff_secs" mapstructure:"nav_backoff_secs"`
	NavTimeoutSecs    int      `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	ScrollCount       int      `yaml:"scroll_count" mapstructure:"scroll_count"`
	ScrollWaitMs      int      `yaml:"scroll_wait_ms" mapstructure:"scroll_wait_ms"`
	ExtraScrollWaitMs int      `yaml:"extra_scroll_wait_ms" mapstructure:"extra_scroll_wait_ms"`
	SelectorWaitMs    int      `yaml:"selector_wait_ms" mapstructure:"selector_wait_ms"`
	DynamicWaitMs     int      `yaml:"dynamic_wait_ms" mapstructure:"dynamic_wait_ms"`
	FallbackSelectors []string `yaml:"fallback_selectors" mapstructure:"fallback_selectors"`
}

// SEOConfig configures the analytics run.
type SEOConfig struct {
	KeywordCachePath string `yaml:"keyword_cache_path" mapstructure:"keyword_cache_path"`
	AnalyticsPath    string `yaml:"analytics_path" mapstructure:"analytics_path"`
	UniquenessScope  string `yaml:"uniqueness_scope" mapstructure:"uniqueness_scope"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	FrequencyTopN    int    `yaml:"frequency_top_n" mapstructure:"frequency_top_n"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRANDSEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "products.db")
	v.SetDefault("brands.file", "scrape_struct.json")
	v.SetDefault("browser.mode", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.rate_limit_per_sec", 2.0)
	v.SetDefault("browser.rate_burst", 2)
	v.SetDefault("browser.http_timeout_secs", 30)
	v.SetDefault("scrape.max_products", 50)
	v.SetDefault("scrape.nav_attempts", 3)
	v.SetDefault("scrape.nav_backoff_secs", 2)
	v.SetDefault("scrape.nav_timeout_secs", 60)
	v.SetDefault("scrape.scroll_count", 3)
	v.SetDefault("scrape.scroll_wait_ms", 2000)
	v.SetDefault("scrape.extra_scroll_wait_ms", 1000)
	v.SetDefault("scrape.selector_wait_ms", 15000)
	v.SetDefault("scrape.dynamic_wait_ms", 5000)
	v.SetDefault("scrape.fallback_selectors", []string{"a.is--href-replaced", `a[href*="/products/"]`})
	v.SetDefault("seo.keyword_cache_path", "seo_keywords.json")
	v.SetDefault("seo.analytics_path", "output/seo_analytics.json")
	v.SetDefault("seo.uniqueness_scope", "brand")
	v.SetDefault("seo.concurrency", 4)
	v.SetDefault("seo.frequency_top_n", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the given command depends on. Every problem
// found is reported in one error.
func (c *Config) Validate(command string) error {
	var problems []string

	needsStore := map[string]bool{"scrape": true, "stop": true, "seo": true, "products": true, "export": true, "runs": true}
	if needsStore[command] {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch command {
	case "scrape":
		if c.Brands.File == "" {
			problems = append(problems, "brands.file is required")
		}
		switch c.Browser.Mode {
		case "chrome", "http":
		default:
			problems = append(problems, "browser.mode must be chrome or http")
		}
		if c.Scrape.MaxProducts <= 0 {
			problems = append(problems, "scrape.max_products must be positive")
		}
		if c.Scrape.NavAttempts <= 0 {
			problems = append(problems, "scrape.nav_attempts must be positive")
		}
	case "seo":
		switch c.SEO.UniquenessScope {
		case "brand", "all":
		default:
			problems = append(problems, "seo.uniqueness_scope must be brand or all")
		}
		if c.SEO.Concurrency <= 0 {
			problems = append(problems, "seo.concurrency must be positive")
		}
		if c.SEO.KeywordCachePath == "" {
			problems = append(problems, "seo.keyword_cache_path is required")
		}
	case "brands":
		if c.Brands.File == "" {
			problems = append(problems, "brands.file is required")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", command, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Package config provides Viper-based configuration for scout.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete scout configuration.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"`
	Model     ModelConfig     `mapstructure:"model"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Relevance RelevanceConfig `mapstructure:"relevance"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SearchConfig points scout at a SearxNG-compatible metasearch instance.
type SearchConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ModelConfig configures the language model client.
type ModelConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// BrowserConfig configures the browser-automation service client.
type BrowserConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
}

// FetchConfig configures direct page fetching.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	Fingerprint       string        `mapstructure:"fingerprint"`
	ProxyFile         string        `mapstructure:"proxy_file"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Jitter            float64       `mapstructure:"jitter"`
}

// CrawlConfig bounds the crawl stage.
type CrawlConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MaxPages    int           `mapstructure:"max_pages"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
}

// RelevanceConfig tunes candidate filtering.
type RelevanceConfig struct {
	BatchSize int  `mapstructure:"batch_size"`
	FailOpen  bool `mapstructure:"fail_open"`
}

// EnrichConfig bounds the enrichment stage.
type EnrichConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	SnippetLimit  int           `mapstructure:"snippet_limit"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

// ServerConfig configures the HTTP API and metrics listeners.
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// StorageConfig selects a persistence backend. Backend is one of none, csv,
// json, sqlite, postgres; DSN is the file path or connection string.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and SCOUT_* environment
// variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("scout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/scout")
	}

	v.SetEnvPrefix("SCOUT")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file is fine, defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.endpoint", "http://localhost:8080")
	v.SetDefault("search.timeout", "10s")

	v.SetDefault("model.model", "gemini-2.0-flash")
	v.SetDefault("model.requests_per_second", 1.0)

	v.SetDefault("browser.page_timeout", "60s")

	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.fingerprint", "chrome")
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("fetch.jitter", 0.3)

	v.SetDefault("crawl.concurrency", 5)
	v.SetDefault("crawl.max_pages", 3)
	v.SetDefault("crawl.page_timeout", "90s")

	v.SetDefault("relevance.batch_size", 20)
	v.SetDefault("relevance.fail_open", true)

	v.SetDefault("enrich.concurrency", 3)
	v.SetDefault("enrich.snippet_limit", 10)
	v.SetDefault("enrich.lookup_timeout", "45s")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.metrics_addr", ":9090")

	v.SetDefault("storage.backend", "none")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}

	validBackends := map[string]bool{"none": true, "csv": true, "json": true, "sqlite": true, "postgres": true}
	if !validBackends[cfg.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend != "none" && cfg.Storage.DSN == "" {
		return fmt.Errorf("storage backend %s requires storage.dsn", cfg.Storage.Backend)
	}

	if cfg.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be at least 1")
	}

	return nil
}

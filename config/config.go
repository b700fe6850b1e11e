package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
)

// Storage schema modes.
const (
	SchemaFlat    = "flat"
	SchemaCatalog = "catalog"
)

// Config holds synchronizer configuration.
type Config struct {
	BaseURL    string            `yaml:"base_url"`
	DBPath     string            `yaml:"db_path"`
	Schema     string            `yaml:"schema"` // flat or catalog
	Start      string            `yaml:"start"`  // YYYY-MM-DD, empty resumes after the last stored day
	End        string            `yaml:"end"`    // YYYY-MM-DD, empty means today
	Categories []string          `yaml:"categories"`
	Timeout    time.Duration     `yaml:"timeout"`
	UserAgent  string            `yaml:"user_agent"`
	Headers    map[string]string `yaml:"headers"`

	MaxAttempts     int           `yaml:"max_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
	Delay           time.Duration `yaml:"delay"`
	RandomDelay     time.Duration `yaml:"random_delay"`
	SkipExisting    bool          `yaml:"skip_existing"`

	BlockMarkers []string `yaml:"block_markers"`
	EmptyMarkers []string `yaml:"empty_markers"`

	ProductCacheSize int    `yaml:"product_cache_size"`
	OutputFile       string `yaml:"output_file"`
	OutputFormat     string `yaml:"output_format"` // csv, json, or dual
	MetricsAddr      string `yaml:"metrics_addr"`
	ListenAddr       string `yaml:"listen_addr"`
	Verbose          bool   `yaml:"verbose"`
}

// DefaultStart is the first day synchronized into an empty store.
const DefaultStart = "2024-01-01"

// DefaultConfig returns conservative defaults for the municipal listing page.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://www.ankara.bel.tr/hal-fiyatlari",
		DBPath:     "hal_prices.sqlite",
		Schema:     SchemaFlat,
		Categories: parser.Slugs(),
		Timeout:    30 * time.Second,
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
			"Accept-Language":           "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7",
			"Origin":                    "https://www.ankara.bel.tr",
			"Referer":                   "https://www.ankara.bel.tr/hal-fiyatlari",
			"Upgrade-Insecure-Requests": "1",
		},
		MaxAttempts:      3,
		RetryBackoff:     time.Second,
		RetryBackoffMax:  10 * time.Second,
		Delay:            time.Second,
		RandomDelay:      500 * time.Millisecond,
		ProductCacheSize: 4096,
		OutputFormat:     "csv",
		ListenAddr:       ":8000",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.DBPath == "" {
		return fmt.Errorf("db path cannot be empty")
	}
	if c.Schema != SchemaFlat && c.Schema != SchemaCatalog {
		return fmt.Errorf("schema must be flat or catalog")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	cats, err := parser.NormalizeCategories(c.Categories)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return fmt.Errorf("at least one category is required")
	}

	start, end, err := c.DateBounds()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", c.End, c.Start)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.ProductCacheSize <= 0 {
		return fmt.Errorf("product cache size must be positive")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// DateBounds parses Start and End. Unset bounds are returned as zero times.
func (c *Config) DateBounds() (start, end time.Time, err error) {
	if c.Start != "" {
		if start, err = time.Parse(models.DateLayout, c.Start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: want YYYY-MM-DD", c.Start)
		}
	}
	if c.End != "" {
		if end, err = time.Parse(models.DateLayout, c.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: want YYYY-MM-DD", c.End)
		}
	}
	return start, end, nil
}

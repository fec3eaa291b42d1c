package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the PriceHound server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scraper  ScraperConfig
	Scrape   ScrapeConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// ScraperConfig selects and tunes the lookup backend.
type ScraperConfig struct {
	Provider   string
	NavTimeout time.Duration
	CacheTTL   time.Duration
}

// ScrapeConfig tunes the orchestration core: pacing, retry and timeouts.
// MaxConcurrentJobs is informational only and is never enforced internally.
type ScrapeConfig struct {
	MaxConcurrentJobs int
	InterStoreDelay   time.Duration
	InterProductDelay time.Duration
	PerTaskTimeout    time.Duration
	MaxRetries        int
	RetryInitialDelay time.Duration
	RetryMultiplier   float64
	RetryMaxDelay     time.Duration
	JitterFraction    float64
	RetryJitter       bool
}

var validProviders = map[string]bool{
	"browser":   true,
	"synthetic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("PRICEHOUND_PORT", 8080),
			Env:  envString("PRICEHOUND_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scraper: ScraperConfig{
			Provider:   os.Getenv("SCRAPER_PROVIDER"),
			NavTimeout: envDuration("SCRAPER_NAV_TIMEOUT", 20*time.Second),
			CacheTTL:   envDuration("SCRAPE_CACHE_TTL", time.Hour),
		},
		Scrape: ScrapeConfig{
			MaxConcurrentJobs: envInt("SCRAPE_MAX_CONCURRENT_JOBS", 4),
			InterStoreDelay:   envDuration("SCRAPE_INTER_STORE_DELAY", 5*time.Second),
			InterProductDelay: envDuration("SCRAPE_INTER_PRODUCT_DELAY", 2*time.Second),
			PerTaskTimeout:    envDuration("SCRAPE_PER_TASK_TIMEOUT", 30*time.Second),
			MaxRetries:        envInt("SCRAPE_MAX_RETRIES", 3),
			RetryInitialDelay: envDuration("SCRAPE_RETRY_INITIAL_DELAY", time.Second),
			RetryMultiplier:   envFloat("SCRAPE_RETRY_MULTIPLIER", 2.0),
			RetryMaxDelay:     envDuration("SCRAPE_RETRY_MAX_DELAY", 30*time.Second),
			JitterFraction:    envFloat("SCRAPE_JITTER_FRACTION", 0.2),
			RetryJitter:       envBool("SCRAPE_RETRY_JITTER", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Scraper.Provider == "" {
		return fmt.Errorf("SCRAPER_PROVIDER is required")
	}
	if !validProviders[c.Scraper.Provider] {
		return fmt.Errorf("SCRAPER_PROVIDER must be one of browser, synthetic; got %q", c.Scraper.Provider)
	}
	if c.Scraper.NavTimeout <= 0 {
		return fmt.Errorf("SCRAPER_NAV_TIMEOUT must be positive, got %s", c.Scraper.NavTimeout)
	}

	if c.Scrape.MaxConcurrentJobs < 1 {
		return fmt.Errorf("SCRAPE_MAX_CONCURRENT_JOBS must be at least 1, got %d", c.Scrape.MaxConcurrentJobs)
	}
	if c.Scrape.InterStoreDelay < 0 {
		return fmt.Errorf("SCRAPE_INTER_STORE_DELAY must not be negative, got %s", c.Scrape.InterStoreDelay)
	}
	if c.Scrape.InterProductDelay < 0 {
		return fmt.Errorf("SCRAPE_INTER_PRODUCT_DELAY must not be negative, got %s", c.Scrape.InterProductDelay)
	}
	if c.Scrape.PerTaskTimeout <= 0 {
		return fmt.Errorf("SCRAPE_PER_TASK_TIMEOUT must be positive, got %s", c.Scrape.PerTaskTimeout)
	}
	if c.Scrape.MaxRetries < 1 {
		return fmt.Errorf("SCRAPE_MAX_RETRIES must be at least 1, got %d", c.Scrape.MaxRetries)
	}
	if c.Scrape.RetryInitialDelay < 0 {
		return fmt.Errorf("SCRAPE_RETRY_INITIAL_DELAY must not be negative, got %s", c.Scrape.RetryInitialDelay)
	}
	if c.Scrape.RetryMultiplier < 1 {
		return fmt.Errorf("SCRAPE_RETRY_MULTIPLIER must be at least 1, got %v", c.Scrape.RetryMultiplier)
	}
	if c.Scrape.RetryMaxDelay < c.Scrape.RetryInitialDelay {
		return fmt.Errorf("SCRAPE_RETRY_MAX_DELAY must not be below SCRAPE_RETRY_INITIAL_DELAY")
	}
	if c.Scrape.JitterFraction < 0 || c.Scrape.JitterFraction >= 1 {
		return fmt.Errorf("SCRAPE_JITTER_FRACTION must be in [0, 1), got %v", c.Scrape.JitterFraction)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

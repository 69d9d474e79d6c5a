// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/coopgames.db"`
	ListenAddr   string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	CatalogURL string `env:"CATALOG_URL" envDefault:"https://api.co-optimus.com/games.php"`

	ScrapeInterval time.Duration `env:"SCRAPE_INTERVAL" envDefault:"12h"`
	SchedulerTick  time.Duration `env:"SCHEDULER_TICK" envDefault:"10m"`
	ErrorCooldown  time.Duration `env:"ERROR_COOLDOWN" envDefault:"5m"`

	// EnrichDelay separates per-game Steam requests; it dominates total
	// scrape wall-clock time.
	EnrichDelay time.Duration `env:"ENRICH_DELAY" envDefault:"2s"`
	PriceDelay  time.Duration `env:"PRICE_DELAY" envDefault:"2s"`

	PriceBatchSize int      `env:"PRICE_BATCH_SIZE" envDefault:"200"`
	CountryCodes   []string `env:"COUNTRY_CODES" envDefault:"SE,US,GB,DE,FR" envSeparator:","`

	FetchRetries     uint64        `env:"FETCH_RETRIES" envDefault:"15"`
	FetchBackoffBase time.Duration `env:"FETCH_BACKOFF_BASE" envDefault:"2s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ScrapeInterval <= 0 {
		return nil, fmt.Errorf("SCRAPE_INTERVAL must be positive")
	}
	if cfg.PriceBatchSize < 1 {
		return nil, fmt.Errorf("PRICE_BATCH_SIZE must be at least 1")
	}
	if len(cfg.CountryCodes) == 0 {
		return nil, fmt.Errorf("COUNTRY_CODES must not be empty")
	}
	for _, cc := range cfg.CountryCodes {
		if len(cc) != 2 {
			return nil, fmt.Errorf("invalid country code %q in COUNTRY_CODES", cc)
		}
	}
	return cfg, nil
}

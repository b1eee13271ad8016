package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/mapthepast.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`

	// CORSOrigins is a comma-separated list of origins allowed to call the
	// API cross-site, e.g. a frontend dev server.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// RedisURL enables the recently-played cache. Empty means the store
	// answers recent-history lookups directly.
	RedisURL string `env:"REDIS_URL"`

	RoundTimerSeconds int           `env:"ROUND_TIMER_SECONDS" envDefault:"30"`
	RecentWindow      int           `env:"RECENT_WINDOW" envDefault:"50"`
	TeardownTimeout   time.Duration `env:"TEARDOWN_TIMEOUT" envDefault:"5s"`
	SessionIdle       time.Duration `env:"SESSION_IDLE" envDefault:"2h"`
	SweepAge          time.Duration `env:"SWEEP_AGE" envDefault:"24h"`

	GeocoderURL       string `env:"GEOCODER_URL" envDefault:"https://nominatim.openstreetmap.org"`
	GeocoderUserAgent string `env:"GEOCODER_USER_AGENT" envDefault:"mapthepast/1.0"`

	// CatalogPath, when set, is imported into the events table at startup.
	CatalogPath string `env:"CATALOG_PATH"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.RoundTimerSeconds <= 0 {
		return nil, fmt.Errorf("ROUND_TIMER_SECONDS must be positive, got %d", cfg.RoundTimerSeconds)
	}
	if cfg.RecentWindow <= 0 {
		return nil, fmt.Errorf("RECENT_WINDOW must be positive, got %d", cfg.RecentWindow)
	}
	return &cfg, nil
}

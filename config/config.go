// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	StorageDriverR2    = "r2"
	StorageDriverLocal = "local"
)

// Config is the full service configuration.
type Config struct {
	Port           int      `env:"PORT" envDefault:"5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"json"`

	StoreDriver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL      string `env:"DATABASE_URL"`
	DBConnectRetries uint64 `env:"DB_CONNECT_RETRIES" envDefault:"5"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"r2"`
	R2            R2
	LocalDir      string `env:"LOCAL_UPLOAD_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5200"`

	MapWidth  int `env:"MAP_WIDTH" envDefault:"100"`
	MapHeight int `env:"MAP_HEIGHT" envDefault:"100"`
	MapMargin int `env:"MAP_MARGIN" envDefault:"10"`
	BiomeMidX int `env:"BIOME_MID_X" envDefault:"50"`
	BiomeMidY int `env:"BIOME_MID_Y" envDefault:"50"`

	CallTimeout    time.Duration `env:"CALL_TIMEOUT" envDefault:"15s"`
	BodyLimitMB    int           `env:"BODY_LIMIT_MB" envDefault:"64"`
	ExpiryInterval time.Duration `env:"EXPIRY_INTERVAL" envDefault:"1m"`
}

// R2 holds the Cloudflare R2 credentials.
type R2 struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.StorageDriver {
	case StorageDriverR2:
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.AccessKeySecret == "" || c.R2.Bucket == "" {
			errs = append(errs, errors.New("CLOUDFLARE_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_ACCESS_KEY_SECRET and R2_BUCKET_NAME are required for r2 storage"))
		}
	case StorageDriverLocal:
		if c.LocalDir == "" {
			errs = append(errs, errors.New("LOCAL_UPLOAD_DIR must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	if c.MapWidth <= 0 || c.MapHeight <= 0 {
		errs = append(errs, errors.New("MAP_WIDTH and MAP_HEIGHT must be positive"))
	}
	if c.MapMargin < 0 || 2*c.MapMargin > c.MapWidth || 2*c.MapMargin > c.MapHeight {
		errs = append(errs, fmt.Errorf("MAP_MARGIN %d leaves no interior on a %dx%d map", c.MapMargin, c.MapWidth, c.MapHeight))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("CALL_TIMEOUT must be positive"))
	}
	if c.BodyLimitMB <= 0 {
		errs = append(errs, errors.New("BODY_LIMIT_MB must be positive"))
	}
	if c.ExpiryInterval <= 0 {
		errs = append(errs, errors.New("EXPIRY_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// BiomeSymmetric reports whether the biome midpoint sits at the map center.
func (c *Config) BiomeSymmetric() bool {
	return 2*c.BiomeMidX == c.MapWidth && 2*c.BiomeMidY == c.MapHeight
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

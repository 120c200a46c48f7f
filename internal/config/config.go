// Package config loads and validates the application configuration from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/engine"
	"github.com/Veraticus/dossier/internal/extract"
	"github.com/Veraticus/dossier/internal/normalize"
	"github.com/spf13/viper"
)

// Summary store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the validated application configuration.
type Config struct {
	HomeCountry   string
	HomeCurrency  string
	StoreBackend  string
	DatabasePath  string
	RedisAddr     string
	RedisPrefix   string
	LogLevel      string
	LogFormat     string
	SessionMaxAge time.Duration
	CacheTTL      time.Duration
	RatePerSecond float64
	RateBurst     int
	Concurrency   int
	SalaryMonths  int64
	ForeignMonths int64
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("home.country", "PT")
	v.SetDefault("home.currency", "EUR")
	v.SetDefault("home.salary_months", 14)
	v.SetDefault("home.foreign_salary_months", 12)
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("database.path", "~/.local/share/dossier/dossier.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "dossier:")
	v.SetDefault("replay.concurrency", 4)
	v.SetDefault("extract.rate_per_second", 0)
	v.SetDefault("extract.burst", 1)
	v.SetDefault("extract.cache_ttl", 15*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		HomeCountry:   strings.TrimSpace(v.GetString("home.country")),
		HomeCurrency:  strings.TrimSpace(v.GetString("home.currency")),
		SalaryMonths:  v.GetInt64("home.salary_months"),
		ForeignMonths: v.GetInt64("home.foreign_salary_months"),
		SessionMaxAge: v.GetDuration("session.max_age"),
		StoreBackend:  strings.ToLower(strings.TrimSpace(v.GetString("store.backend"))),
		DatabasePath:  ExpandPath(v.GetString("database.path")),
		RedisAddr:     strings.TrimSpace(v.GetString("redis.addr")),
		RedisPrefix:   v.GetString("redis.prefix"),
		Concurrency:   v.GetInt("replay.concurrency"),
		RatePerSecond: v.GetFloat64("extract.rate_per_second"),
		RateBurst:     v.GetInt("extract.burst"),
		CacheTTL:      v.GetDuration("extract.cache_ttl"),
		LogLevel:      v.GetString("logging.level"),
		LogFormat:     v.GetString("logging.format"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.HomeCountry, _ = normalize.CountryCode(cfg.HomeCountry)
	cfg.HomeCurrency, _ = normalize.CurrencyCode(cfg.HomeCurrency)
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, ok := normalize.CountryCode(c.HomeCountry); !ok {
		return fmt.Errorf("%w: home.country %q is not a recognized country", common.ErrInvalidConfig, c.HomeCountry)
	}
	if _, ok := normalize.CurrencyCode(c.HomeCurrency); !ok {
		return fmt.Errorf("%w: home.currency %q is not a recognized currency", common.ErrInvalidConfig, c.HomeCurrency)
	}
	if c.SalaryMonths <= 0 || c.ForeignMonths <= 0 {
		return fmt.Errorf("%w: salary month divisors must be positive", common.ErrInvalidConfig)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("%w: session.max_age must be positive", common.ErrInvalidConfig)
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis.addr", common.ErrMissingConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store.backend %q", common.ErrInvalidConfig, c.StoreBackend)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("%w: replay.concurrency must be at least 1", common.ErrInvalidConfig)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("%w: extract.rate_per_second cannot be negative", common.ErrInvalidConfig)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: extract.cache_ttl cannot be negative", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "console", "text", "json":
	default:
		return fmt.Errorf("%w: invalid log format %q", common.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Engine returns the aggregator configuration.
func (c Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.HomeCountry = c.HomeCountry
	cfg.HomeCurrency = c.HomeCurrency
	cfg.HomeSalaryMonths = c.SalaryMonths
	cfg.ForeignSalaryMonths = c.ForeignMonths
	return cfg
}

// Extract returns the extraction pipeline configuration.
func (c Config) Extract() extract.Config {
	return extract.Config{
		RatePerSecond: c.RatePerSecond,
		Burst:         c.RateBurst,
		CacheTTL:      c.CacheTTL,
	}
}

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

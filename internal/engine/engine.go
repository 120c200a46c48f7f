// Package engine implements the consolidation engine: per-client aggregators
// that merge AI extractions into canonical profile state, and session
// aggregators that hold many clients for one import batch.
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration options for the aggregators.
type Config struct {
	// Clock returns the current time; tests replace it for stable timestamps.
	Clock func() time.Time
	// HomeCountry is the ISO country code salaries and tax ids default to.
	HomeCountry string
	// HomeCurrency is the currency of home-country salaries without one.
	HomeCurrency string
	// HomeSalaryMonths divides a home-country annual income into a monthly figure.
	HomeSalaryMonths int64
	// ForeignSalaryMonths divides a foreign annual income into a monthly figure.
	ForeignSalaryMonths int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Clock:               time.Now,
		HomeCountry:         "PT",
		HomeCurrency:        "EUR",
		HomeSalaryMonths:    14,
		ForeignSalaryMonths: 12,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Clock == nil {
		c.Clock = def.Clock
	}
	if c.HomeCountry == "" {
		c.HomeCountry = def.HomeCountry
	}
	c.HomeCountry = strings.ToUpper(c.HomeCountry)
	if c.HomeCurrency == "" {
		c.HomeCurrency = def.HomeCurrency
	}
	c.HomeCurrency = strings.ToUpper(c.HomeCurrency)
	if c.HomeSalaryMonths <= 0 {
		c.HomeSalaryMonths = def.HomeSalaryMonths
	}
	if c.ForeignSalaryMonths <= 0 {
		c.ForeignSalaryMonths = def.ForeignSalaryMonths
	}
	return c
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setAmount(dst *decimal.NullDecimal, v decimal.NullDecimal) {
	if v.Valid {
		*dst = v
	}
}

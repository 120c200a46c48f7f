package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "PT", cfg.HomeCountry)
	assert.Equal(t, "EUR", cfg.HomeCurrency)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.NotContains(t, cfg.DatabasePath, "~")

	eng := cfg.Engine()
	assert.Equal(t, "PT", eng.HomeCountry)
	assert.Equal(t, int64(14), eng.HomeSalaryMonths)
	assert.Equal(t, int64(12), eng.ForeignSalaryMonths)
	assert.NotNil(t, eng.Clock)

	ext := cfg.Extract()
	assert.Equal(t, 15*time.Minute, ext.CacheTTL)
	assert.Zero(t, ext.RatePerSecond)
}

func TestLoad_NormalizesCodes(t *testing.T) {
	v := newViper()
	v.Set("home.country", "France")
	v.Set("home.currency", "chf")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "FR", cfg.HomeCountry)
	assert.Equal(t, "CHF", cfg.HomeCurrency)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
home:
  country: LU
session:
  max_age: 2h
store:
  backend: memory
replay:
  concurrency: 8
extract:
  rate_per_second: 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "LU", cfg.HomeCountry)
	assert.Equal(t, 2*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.InDelta(t, 2.5, cfg.RatePerSecond, 0.0001)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr error
	}{
		{name: "unknown country", key: "home.country", value: "Atlantis", wantErr: common.ErrInvalidConfig},
		{name: "unknown currency", key: "home.currency", value: "shells", wantErr: common.ErrInvalidConfig},
		{name: "zero max age", key: "session.max_age", value: "0s", wantErr: common.ErrInvalidConfig},
		{name: "unknown backend", key: "store.backend", value: "postgres", wantErr: common.ErrInvalidConfig},
		{name: "missing redis addr", key: "redis.addr", value: "", wantErr: nil},
		{name: "no workers", key: "replay.concurrency", value: 0, wantErr: common.ErrInvalidConfig},
		{name: "negative rate", key: "extract.rate_per_second", value: -1, wantErr: common.ErrInvalidConfig},
		{name: "bad log level", key: "logging.level", value: "loud", wantErr: common.ErrInvalidConfig},
		{name: "bad log format", key: "logging.format", value: "xml", wantErr: common.ErrInvalidConfig},
		{name: "zero salary months", key: "home.salary_months", value: 0, wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_RedisBackendRequiresAddr(t *testing.T) {
	v := newViper()
	v.Set("store.backend", "redis")
	v.Set("redis.addr", " ")

	_, err := Load(v)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("DOSSIER_TEST_DIR", "/tmp/dossier")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/data/dossier.db", want: filepath.Join(home, "data/dossier.db")},
		{in: "$DOSSIER_TEST_DIR/db", want: "/tmp/dossier/db"},
		{in: "/abs/path", want: "/abs/path"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

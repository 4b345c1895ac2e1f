package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "DATABASE_URL", "POSTGRESQL_HOST", "POSTGRESQL_USER", "POSTGRESQL_DBNAME",
		"QUOTE_TTL", "DISPATCH_MODE", "DISPATCH_EXHAUSTED_POLICY", "POLICY_FILE", "JWT_SECRET",
		"CORS_ALLOWED_ORIGINS", "MANUAL_RADIUS_KM", "SWEEP_WORKERS", "ROSTER_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RosterFile)
	assert.Equal(t, 12*time.Hour, cfg.QuoteTTL)
	assert.Equal(t, 24*time.Hour, cfg.QuoteWindow)
	assert.Equal(t, 3*time.Minute, cfg.DispatchEntryTTL)
	assert.Equal(t, valueobject.DispatchModeSequential, cfg.DispatchMode)
	assert.Equal(t, valueobject.ExhaustedNoCoverage, cfg.ExhaustedPolicy)
	assert.Equal(t, valueobject.DefaultTierPolicy(), cfg.Tiers)
	assert.Equal(t, 4, cfg.SweepWorkers)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRESQL_HOST", "db")
	t.Setenv("POSTGRESQL_USER", "dispatch")
	t.Setenv("POSTGRESQL_DBNAME", "engine")
	t.Setenv("QUOTE_TTL", "6h")
	t.Setenv("DISPATCH_MODE", "parallel")
	t.Setenv("DISPATCH_EXHAUSTED_POLICY", "retry")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://dispatch:@db:5432/engine?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, 6*time.Hour, cfg.QuoteTTL)
	assert.Equal(t, valueobject.DispatchModeParallel, cfg.DispatchMode)
	assert.Equal(t, valueobject.ExhaustedRetry, cfg.ExhaustedPolicy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":    {"QUOTE_TTL", "soon"},
		"bad mode":        {"DISPATCH_MODE", "broadcast"},
		"bad policy":      {"DISPATCH_EXHAUSTED_POLICY", "forever"},
		"zero workers":    {"SWEEP_WORKERS", "0"},
		"negative radius": {"MANUAL_RADIUS_KM", "-1"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestFromEnv_ProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestFromEnv_PolicyFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  manual_radius_km: 7.5
pricing:
  base:
    manual: "45"
  service_surcharge:
    courier: "5"
  urgent_multiplier: "2"
`), 0o600))
	t.Setenv("POLICY_FILE", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7.5, cfg.Tiers.ManualRadiusKm)
	assert.Equal(t, 25.0, cfg.Tiers.EquippedRadiusKm)
	assert.Equal(t, "45", cfg.Pricing.Base[valueobject.TierManual].String())
	assert.Equal(t, "5", cfg.Pricing.ServiceSurcharge[valueobject.ServiceCourier].String())
	assert.Equal(t, "2", cfg.Pricing.UrgentMultiplier.String())
	assert.Equal(t, "75", cfg.Pricing.Base[valueobject.TierEquipped].String())
}

func TestFromEnv_PolicyFileErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	t.Setenv("POLICY_FILE", filepath.Join(dir, "missing.yaml"))
	_, err := FromEnv()
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pricing:\n  base:\n    wizard: \"10\"\n"), 0o600))
	t.Setenv("POLICY_FILE", bad)
	_, err = FromEnv()
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "oracle-1", cfg.OracleKeyID)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Zero(t, cfg.AttestRatePerSec)
	assert.True(t, cfg.Policy.RequireFutureMaturity)
	assert.False(t, cfg.Policy.FullExtinguishmentOnly)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ORACLE_KEY_ID", "oracle-main")
	t.Setenv("SPOT_STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ATTEST_RATE_PER_SEC", "12.5")
	t.Setenv("ATTEST_BURST", "4")
	t.Setenv("FULL_EXTINGUISHMENT_ONLY", "true")
	t.Setenv("REQUIRE_FUTURE_MATURITY", "false")

	cfg := Load()

	assert.Equal(t, "oracle-main", cfg.OracleKeyID)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 12.5, cfg.AttestRatePerSec)
	assert.Equal(t, 4, cfg.AttestBurst)
	assert.True(t, cfg.Policy.FullExtinguishmentOnly)
	assert.False(t, cfg.Policy.RequireFutureMaturity)
}

func TestLoadIgnoresUnparseableNumbers(t *testing.T) {
	t.Setenv("ATTEST_BURST", "lots")
	t.Setenv("ATTEST_RATE_PER_SEC", "fast")

	cfg := Load()
	assert.Equal(t, 1, cfg.AttestBurst)
	assert.Zero(t, cfg.AttestRatePerSec)
}

func TestLoadFileOverridesEnv(t *testing.T) {
	t.Setenv("SPOT_STORE_BACKEND", "redis")

	path := filepath.Join(t.TempDir(), "oracled.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend: sqlite
sqlite_path: /var/lib/forwardcore/spots.db
attest_rate_per_sec: 50
policy:
  require_future_maturity: true
  full_extinguishment_only: true
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "/var/lib/forwardcore/spots.db", cfg.SQLitePath)
	assert.Equal(t, 50.0, cfg.AttestRatePerSec)
	assert.True(t, cfg.Policy.FullExtinguishmentOnly)
	// Values the file does not mention keep their env/defaults.
	assert.Equal(t, "oracle-1", cfg.OracleKeyID)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend: [not, a, scalar"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultResolvesPreset(t *testing.T) {
	cfg := Default()
	require.Equal(t, 3, cfg.Bloom.NGramSize)
	require.Equal(t, 500, cfg.Bloom.Capacity)
	require.Equal(t, 0.01, cfg.Bloom.FalsePositiveRate)
	require.True(t, cfg.Search.MemoizeNegatives)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9999
bloom:
  preset: compact
  ngramSize: 2
  seed: [11, 22]
search:
  memoizeNegatives: false
redis:
  enabled: true
  cacheTTL: 5s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 1000, cfg.Bloom.Capacity)
	require.Equal(t, 0.05, cfg.Bloom.FalsePositiveRate)
	require.Equal(t, 2, cfg.Bloom.NGramSize)
	require.Equal(t, []uint64{11, 22}, cfg.Bloom.Seed)
	require.False(t, cfg.Search.MemoizeNegatives)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadExplicitSizingWinsOverPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bloom:\n  capacity: 200\n  falsePositiveRate: 0.001\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 200, cfg.Bloom.Capacity)
	require.Equal(t, 0.001, cfg.Bloom.FalsePositiveRate)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BS_BLOOM_PRESET", "compact")
	t.Setenv("BS_SERVER_PORT", "7000")
	t.Setenv("BS_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("BS_SEARCH_MEMOIZE_NEGATIVES", "false")
	t.Setenv("BS_SERVER_WRITE_RATE", "2.5")
	t.Setenv("BS_SERVER_TRUST_FORWARDED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 1000, cfg.Bloom.Capacity)
	require.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	require.False(t, cfg.Search.MemoizeNegatives)
	require.Equal(t, 2.5, cfg.Server.WriteRatePerSecond)
	require.True(t, cfg.Server.TrustForwardedFor)
}

func TestValidateRejects(t *testing.T) {
	cfg := defaultConfig()
	cfg.Bloom.Preset = "huge"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Bloom.NGramSize = 0
	cfg.Bloom.Seed = []uint64{1}
	err := cfg.Validate()
	require.ErrorContains(t, err, "ngramSize")
	require.ErrorContains(t, err, "seed")

	cfg = defaultConfig()
	cfg.Bloom.Capacity = 10
	cfg.Bloom.FalsePositiveRate = 1.5
	require.ErrorContains(t, cfg.Validate(), "falsePositiveRate")

	cfg = defaultConfig()
	cfg.Server.WriteRatePerSecond = -1
	require.ErrorContains(t, cfg.Validate(), "writeRatePerSecond")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default()
	require.Equal(t,
		"host=localhost port=5432 user=bloomsearch password=localdev dbname=bloomsearch sslmode=disable",
		cfg.Postgres.DSN())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, 100, c.Cache.MaxEntries)
	assert.Equal(t, "clickhouse", c.Backend.Type)
	assert.Equal(t, 0.7, c.Pipeline.MinConfidence)
	assert.Equal(t, "sentinel", c.Pipeline.Strategy)
}

func TestParse_KeepsExplicitValues(t *testing.T) {
	yml := `
environment: prod
server:
  port: 9090
pipeline:
  thresholds:
    1Day: 0.08
cache:
  ttl: 30s
`
	c, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Cache.TTL)
	assert.Equal(t, 0.08, c.Pipeline.Thresholds["1Day"])
}

func TestParse_KeepsExplicitZeroValues(t *testing.T) {
	yml := `
server:
  rate_limit:
    enabled: false
metrics:
  enabled: false
kafka:
  required_acks: 0
`
	c, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.False(t, c.Server.RateLimit.Enabled)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, 0, c.Kafka.RequiredAcks)
	assert.Equal(t, 20.0, c.Server.RateLimit.RPS)
}

func TestParse_RejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("backend:\n  type: postgres\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("alpaca:\n  stream_enabled: true\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("kafka:\n  consumer:\n    enabled: true\n"))
	assert.Error(t, err)
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alpaca:\n  stream_enabled: true\n"), 0o644))

	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_API_SECRET", "secret")
	t.Setenv("SYMBOLS", "aapl, msft")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CLASSIFIER_URL", "http://classifier:8000")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "key", c.Alpaca.APIKey)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Alpaca.Symbols)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "http://classifier:8000", c.Classifier.URL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

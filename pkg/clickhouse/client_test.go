package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "trendlab",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/trendlab", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "5s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "1", u.Query().Get("async_insert"))
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))
}

func TestBuildDSN_HTTP(t *testing.T) {
	dsn := BuildDSN(ClientConfig{Host: "h", Port: 8123, Database: "d", UseHTTP: true})
	assert.Equal(t, "http://h:8123/d", dsn)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.EqualError(t, err, "host is required")
}

func TestClientConfig_Validate(t *testing.T) {
	cfg := DefaultClientConfig()
	assert.Error(t, cfg.Validate())

	WithHost("ch.local")(&cfg)
	require.NoError(t, cfg.Validate())

	WithDatabase("")(&cfg)
	assert.Equal(t, "default", cfg.Database)

	WithPort(0)(&cfg)
	assert.Error(t, cfg.Validate())
	WithPort(9000)(&cfg)

	WithMaxConnections(2, 4)(&cfg)
	assert.Error(t, cfg.Validate())
}

func TestWithTimeouts_KeepsDefaultsForZero(t *testing.T) {
	cfg := DefaultClientConfig()
	WithTimeouts(0, 30*time.Second)(&cfg)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

type payload struct {
	Ticker string  `json:"ticker"`
	Close  float64 `json:"close"`
}

func TestMemoryCache_RoundTripAndExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithClock(clk.Now), WithMemoryTTL(5*time.Minute))
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "bars:AAPL", payload{Ticker: "AAPL", Close: 101.5}, 0))

	var got payload
	require.NoError(t, mc.Get(ctx, "bars:AAPL", &got))
	assert.Equal(t, payload{Ticker: "AAPL", Close: 101.5}, got)

	clk.Advance(4*time.Minute + 59*time.Second)
	ok, err := mc.Exists(ctx, "bars:AAPL")
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Advance(time.Second)
	err = mc.Get(ctx, "bars:AAPL", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))

	require.NoError(t, mc.Set(ctx, "c", "3", 0))
	assert.Equal(t, 2, mc.Len())

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, "1", s)
	require.NoError(t, mc.Get(ctx, "c", &s))
	assert.Equal(t, "3", s)
}

func TestMemoryCache_TryLock(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	mc := NewMemoryCache(WithClock(clk.Now))
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "job", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "job", time.Second)
	assert.False(t, ok)

	clk.Advance(time.Second)
	ok, _ = mc.TryLock(ctx, "job", time.Second)
	assert.True(t, ok)

	require.NoError(t, mc.Unlock(ctx, "job"))
	ok, _ = mc.Exists(ctx, "job")
	assert.False(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]payload, error) {
		calls++
		return []payload{{Ticker: "MSFT", Close: 3}}, nil
	}

	first, err := GetOrLoad(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, mc, "k", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = GetOrLoad(ctx, nil, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLayeredCache_FillsL1FromRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	require.NoError(t, remote.Set(ctx, "news", payload{Ticker: "TSLA"}, 0))

	lc := NewLayeredCache(remote, WithLayeredMemory(WithMemoryMaxEntries(10)))
	var got payload
	require.NoError(t, lc.Get(ctx, "news", &got))
	assert.Equal(t, "TSLA", got.Ticker)

	require.NoError(t, remote.Delete(ctx, "news"))
	got = payload{}
	require.NoError(t, lc.Get(ctx, "news", &got))
	assert.Equal(t, "TSLA", got.Ticker)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "bars:AAPL:1Day:100", GenerateKeyWithParams("bars", "AAPL", "1Day", 100))
	assert.Len(t, HashKey("AAPL,MSFT"), 40)
}

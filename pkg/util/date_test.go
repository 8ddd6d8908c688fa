package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2024-10-10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("garbage", def).Equal(def))
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	from, to := ResolveRange("", "", now, 24*time.Hour)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-24*time.Hour), from)

	from, to = ResolveRange("2024-01-01", "2024-02-01", now, time.Hour)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 1, 1, 9, 33, 20, 0, time.UTC)
	to := time.Date(2024, 1, 1, 9, 47, 59, 0, time.UTC)
	f, e := AlignFromTo(from, to, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), f)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 45, 0, 0, time.UTC), e)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, SplitSymbols(" aapl,MSFT,, aapl "))
	assert.Empty(t, SplitSymbols(""))
}

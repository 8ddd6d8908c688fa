package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerFromFilename(t *testing.T) {
	assert.Equal(t, "AAPL", TickerFromFilename("/data/aapl.csv"))
	assert.Equal(t, "MSFT", TickerFromFilename("msft.1d.csv"))
	assert.Equal(t, "SPY", TickerFromFilename("SPY"))
}

func TestReadCSV_HeadersAndOptionalCells(t *testing.T) {
	in := " Start ,Open,HIGH,low,Close,Volume\n" +
		"1700000000,10,11,9,10.5,100\n" +
		"1700086400,,,,11,\n"
	bars, err := ReadCSV(strings.NewReader(in), "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "AAPL", bars[0].Ticker)
	assert.Equal(t, "1700000000", string(bars[0].Time))
	require.NotNil(t, bars[0].High)
	assert.Equal(t, 11.0, *bars[0].High)
	assert.Equal(t, 10.5, bars[0].Close)

	assert.Nil(t, bars[1].Open)
	assert.Nil(t, bars[1].Volume)
	assert.Equal(t, 11.0, bars[1].Close)
}

func TestReadCSV_TickerColumnOverrides(t *testing.T) {
	in := "time,close,ticker\n2024-01-02,100,msft\n"
	bars, err := ReadCSV(strings.NewReader(in), "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "MSFT", bars[0].Ticker)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,close\n1,2\n"), "X")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("time,open\n1,2\n"), "X")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("time,close\n1,abc\n"), "X")
	assert.Error(t, err)

	bars, err := ReadCSV(strings.NewReader(""), "X")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestReadCSV_FeedsEnricher(t *testing.T) {
	in := "time,close\n1700000000,100\n1700086400,101\n1700172800,102\n"
	raw, err := ReadCSV(strings.NewReader(in), "SPY")
	require.NoError(t, err)

	out, err := New().Enrich(raw)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 100.0, out[0].Open)
	assert.Equal(t, "SPY", out[0].Ticker)
}

package episodes

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func makeBars(closes ...float64) []models.EnrichedBar {
	out := make([]models.EnrichedBar, len(closes))
	for i, c := range closes {
		out[i] = models.EnrichedBar{
			Ticker:    "AAPL",
			Time:      day0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    float64(100 * (i + 1)),
			CloseNorm: 1,
		}
	}
	return out
}

func TestDetectSwings_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, DetectSwings(nil, 0.05))
	assert.Len(t, DetectSwings(makeBars(100), 0.05), 1)
	assert.Empty(t, Build(nil, 0.05))
	assert.Empty(t, Build(makeBars(100), 0.05))
}

func TestDetectSwings_Reversals(t *testing.T) {
	swings := DetectSwings(makeBars(100, 103, 106, 101, 97, 99, 101), 0.05)
	require.Len(t, swings, 3)
	assert.Equal(t, models.SwingPoint{Index: 0, Price: 100, Type: models.SwingTrough}, swings[0])
	assert.Equal(t, models.SwingPoint{Index: 2, Price: 106, Type: models.SwingPeak}, swings[1])
	assert.Equal(t, models.SwingPoint{Index: 4, Price: 97, Type: models.SwingTrough}, swings[2])
}

func TestDetectSwings_OriginIsPeakWhenFirstMoveIsDown(t *testing.T) {
	swings := DetectSwings(makeBars(100, 90, 95, 80), 0.05)
	require.NotEmpty(t, swings)
	assert.Equal(t, models.SwingPeak, swings[0].Type)
	for k := 1; k < len(swings); k++ {
		assert.NotEqual(t, swings[k-1].Type, swings[k].Type, "swings must alternate")
		assert.Greater(t, swings[k].Index, swings[k-1].Index)
	}
}

func TestDetectSwings_ZeroAnchorPrice(t *testing.T) {
	swings := DetectSwings(makeBars(0, 5, 10), 0.05)
	require.Len(t, swings, 2)
	assert.Equal(t, 2, swings[1].Index)
	assert.Equal(t, models.SwingTrough, swings[1].Type)
}

func TestBuild_UpThenDown(t *testing.T) {
	eps := Build(makeBars(100, 103, 106, 101, 97, 99, 101), 0.05)
	require.Len(t, eps, 2)

	assert.Equal(t, models.DirectionUp, eps[0].Direction)
	assert.InDelta(t, 0.06, eps[0].TotalReturn, 1e-9)
	assert.Equal(t, 3, eps[0].Duration)

	assert.Equal(t, models.DirectionDown, eps[1].Direction)
	assert.InDelta(t, 97.0/106.0-1, eps[1].TotalReturn, 1e-9)
	assert.InDelta(t, -0.0849, eps[1].TotalReturn, 1e-4)
	assert.Equal(t, 3, eps[1].Duration)
}

func TestBuild_FinalRallyOverThresholdIsItsOwnEpisode(t *testing.T) {
	eps := Build(makeBars(100, 103, 106, 101, 97, 99, 102), 0.05)
	require.Len(t, eps, 3)
	assert.InDelta(t, 0.06, eps[0].TotalReturn, 1e-9)
	assert.InDelta(t, -0.0849, eps[1].TotalReturn, 1e-4)
	assert.Equal(t, models.DirectionUp, eps[2].Direction)
	assert.InDelta(t, 102.0/97.0-1, eps[2].TotalReturn, 1e-9)
}

func TestBuild_TwoBars(t *testing.T) {
	eps := Build(makeBars(100, 110), 0.05)
	require.Len(t, eps, 1)
	assert.Equal(t, 2, eps[0].Duration)
	assert.Equal(t, day0, eps[0].StartTime)
	assert.Equal(t, day0.Add(24*time.Hour), eps[0].EndTime)

	quiet := Build(makeBars(100, 101), 0.05)
	require.Len(t, quiet, 1)
	assert.Equal(t, 2, quiet[0].Duration)
}

func TestBuild_FewerEpisodesAsThresholdGrows(t *testing.T) {
	bars := makeBars(100, 110, 104, 112, 100, 108, 95, 105)
	tests := []struct {
		threshold float64
		want      int
	}{
		{0.01, 7},
		{0.05, 7},
		{0.06, 5},
		{0.09, 3},
		{0.11, 2},
		{0.2, 1},
	}
	prev := len(bars)
	for _, tt := range tests {
		got := len(Build(bars, tt.threshold))
		assert.Equal(t, tt.want, got, "threshold %v", tt.threshold)
		assert.LessOrEqual(t, got, prev)
		prev = got
	}
}

func TestBuild_EpisodesShareBoundaries(t *testing.T) {
	eps := Build(makeBars(100, 110, 104, 112, 100, 108, 95, 105), 0.05)
	require.NotEmpty(t, eps)
	for k := 1; k < len(eps); k++ {
		assert.Equal(t, eps[k-1].EndTime, eps[k].StartTime)
		assert.Equal(t, eps[k-1].PriceEnd, eps[k].PriceStart)
	}
	for _, ep := range eps {
		assert.GreaterOrEqual(t, ep.Duration, 2)
	}
}

func TestBuild_Aggregates(t *testing.T) {
	bars := makeBars(10, 11, 12)
	bars[0].RSI = nil
	bars[1].RSI = models.Float64Ptr(60)
	bars[2].RSI = models.Float64Ptr(70)
	bars[1].OBV = models.Float64Ptr(200)
	bars[2].OBV = models.Float64Ptr(500)
	bars[2].EMA = models.Float64Ptr(11.5)

	eps := Build(bars, 0.05)
	require.Len(t, eps, 1)
	ep := eps[0]

	assert.Equal(t, "AAPL_2024-01-02T00:00:00_2024-01-04T00:00:00", ep.EpisodeID)
	assert.Equal(t, "AAPL", ep.Ticker)
	assert.InDelta(t, 1, ep.LRSlope, 1e-12)
	assert.InDelta(t, 0.1, ep.LRSlopeNorm, 1e-12)
	assert.InDelta(t, 1, ep.LRFitR2, 1e-12)
	assert.Equal(t, models.TrendStrong, ep.TrendQuality)
	assert.Equal(t, "up_strong", ep.CompositeLabel())

	assert.InDelta(t, 200, ep.AvgVolume, 1e-12)
	assert.Equal(t, 300.0, ep.MaxVolume)
	require.NotNil(t, ep.AvgRSI)
	assert.InDelta(t, 65, *ep.AvgRSI, 1e-12)
	assert.Nil(t, ep.AvgRSINorm)
	assert.Nil(t, ep.AvgVWAP)
	assert.Nil(t, ep.RSIStart)
	require.NotNil(t, ep.RSIEnd)
	assert.Equal(t, 70.0, *ep.RSIEnd)
	assert.Equal(t, 500.0, ep.OBVChange)
	assert.Nil(t, ep.EMAStart)
	require.NotNil(t, ep.EMAEnd)

	assert.InDelta(t, (2.0/10+2.0/11+2.0/12)/3, ep.AvgVolatility, 1e-12)
	assert.InDelta(t, 2, ep.AvgVolatilityNorm, 1e-12)
	assert.Equal(t, 2.0, ep.PriceDelta)
	assert.Equal(t, 10.0, ep.PriceStart)
	assert.Equal(t, 12.0, ep.PriceEnd)
}

func TestBuild_FlatSegmentIsNeutral(t *testing.T) {
	bars := makeBars(5, 5, 5)
	bars[1].CloseNorm = 0
	eps := Build(bars, 0.05)
	require.Len(t, eps, 1)
	ep := eps[0]
	assert.Equal(t, models.DirectionFlat, ep.Direction)
	assert.Equal(t, 0.0, ep.TotalReturn)
	assert.Equal(t, 0.0, ep.LRSlope)
	assert.Equal(t, 0.0, ep.LRFitR2)
	assert.Equal(t, models.TrendWeak, ep.TrendQuality)
	assert.InDelta(t, 4.0/3.0, ep.AvgVolatilityNorm, 1e-12)
}

func TestBuild_ZeroStartPrice(t *testing.T) {
	eps := Build(makeBars(0, 0), 0.05)
	require.Len(t, eps, 1)
	assert.Equal(t, 0.0, eps[0].TotalReturn)
	assert.Equal(t, 0.0, eps[0].LRSlopeNorm)
}

func TestBuilder_ConcurrentUse(t *testing.T) {
	b := NewBuilder()
	bars := makeBars(100, 110, 104, 112, 100, 108, 95, 105)
	want := b.Build(bars, 0.05)

	var wg sync.WaitGroup
	results := make([][]models.Episode, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.Build(bars, 0.05)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

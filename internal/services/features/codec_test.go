package features

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
	"TrendLab/pkg/logger"
)

func f(v float64) *float64 { return &v }

func sampleEpisode(dir models.Direction, quality models.TrendQuality, rsiStart *float64) models.Episode {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return models.Episode{
		Ticker:       "AAPL",
		EpisodeID:    "AAPL_2024-01-02T00:00:00_2024-01-05T00:00:00",
		StartTime:    start,
		EndTime:      start.Add(72 * time.Hour),
		Duration:     4,
		Direction:    dir,
		TotalReturn:  0.06,
		LRSlope:      1.5,
		LRSlopeNorm:  0.015,
		LRFitR2:      0.9,
		TrendQuality: quality,
		AvgVolume:    1000,
		MaxVolume:    1500,
		AvgRSI:       f(55),
		PriceStart:   100,
		PriceEnd:     106,
		PriceDelta:   6,
		RSIStart:     rsiStart,
		RSIEnd:       f(60),
		EMAEnd:       f(math.NaN()),
	}
}

func indexOf(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

func TestFeatureNames_Frozen(t *testing.T) {
	require.Len(t, FeatureNames, 37)
	assert.Equal(t, "duration", FeatureNames[0])
	assert.Equal(t, "avg_volume", FeatureNames[5])
	assert.Equal(t, "ema_end_norm", FeatureNames[36])
	seen := map[string]bool{}
	for _, n := range FeatureNames {
		assert.False(t, seen[n], "duplicate feature %s", n)
		seen[n] = true
	}
}

func TestToFeatureVector_Strategies(t *testing.T) {
	ep := sampleEpisode(models.DirectionUp, models.TrendStrong, nil)
	stats := &ColumnStats{
		Mean:   map[string]float64{"rsi_start": 42},
		Median: map[string]float64{"rsi_start": 41},
	}

	tests := []struct {
		strategy ImputeStrategy
		stats    *ColumnStats
		rsiStart float64
		emaEnd   float64
	}{
		{ImputeZero, stats, 0, 0},
		{ImputeMean, stats, 42, 0},
		{ImputeMedian, stats, 41, 0},
		{ImputeMean, nil, 0, 0},
		{ImputeSentinel, stats, -1, -1},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			vec := ToFeatureVector(&ep, tt.strategy, tt.stats)
			require.Len(t, vec, NumFeatures)
			assert.Equal(t, 4.0, vec[indexOf("duration")])
			assert.Equal(t, 0.06, vec[indexOf("total_return")])
			assert.Equal(t, 60.0, vec[indexOf("rsi_end")])
			assert.Equal(t, tt.rsiStart, vec[indexOf("rsi_start")])
			assert.Equal(t, tt.emaEnd, vec[indexOf("ema_end")])
			for _, v := range vec {
				assert.False(t, math.IsNaN(v))
			}
		})
	}
}

func TestParseImputeStrategy(t *testing.T) {
	s, err := ParseImputeStrategy("MEDIAN")
	require.NoError(t, err)
	assert.Equal(t, ImputeMedian, s)

	s, err = ParseImputeStrategy("")
	require.NoError(t, err)
	assert.Equal(t, ImputeSentinel, s)

	_, err = ParseImputeStrategy("knn")
	assert.Error(t, err)
}

func TestComputeColumnStats(t *testing.T) {
	eps := []models.Episode{
		sampleEpisode(models.DirectionUp, models.TrendStrong, f(30)),
		sampleEpisode(models.DirectionUp, models.TrendStrong, f(50)),
		sampleEpisode(models.DirectionUp, models.TrendStrong, f(100)),
		sampleEpisode(models.DirectionUp, models.TrendStrong, nil),
	}
	stats := ComputeColumnStats(eps)
	assert.InDelta(t, 60, stats.Mean["rsi_start"], 1e-12)
	assert.InDelta(t, 50, stats.Median["rsi_start"], 1e-12)
	assert.InDelta(t, 4, stats.Mean["duration"], 1e-12)
	_, ok := stats.Mean["ema_end"]
	assert.False(t, ok)
}

func TestMissingValueReport(t *testing.T) {
	var buf bytes.Buffer
	eps := []models.Episode{
		sampleEpisode(models.DirectionUp, models.TrendStrong, nil),
		sampleEpisode(models.DirectionDown, models.TrendWeak, f(20)),
	}
	counts := MissingValueReport(eps, logger.NewWriter(&buf, "info"))
	assert.Equal(t, 1, counts["rsi_start"])
	assert.Equal(t, 2, counts["ema_end"])
	assert.Zero(t, counts["duration"])
	assert.Contains(t, buf.String(), `"feature":"rsi_start"`)
}

func TestBuildFeatureMatrix(t *testing.T) {
	eps := []models.Episode{
		sampleEpisode(models.DirectionUp, models.TrendStrong, f(30)),
		sampleEpisode(models.DirectionDown, models.TrendWeak, nil),
	}
	m := BuildFeatureMatrix(eps, ImputeSentinel, nil)
	require.Len(t, m, 2)
	assert.Equal(t, 30.0, m[0][indexOf("rsi_start")])
	assert.Equal(t, SentinelValue, m[1][indexOf("rsi_start")])
	assert.Empty(t, BuildFeatureMatrix(nil, ImputeZero, nil))
}

func TestLabels(t *testing.T) {
	up := sampleEpisode(models.DirectionUp, models.TrendStrong, nil)
	down := sampleEpisode(models.DirectionDown, models.TrendWeak, nil)
	flat := sampleEpisode(models.DirectionFlat, models.TrendWeak, nil)

	assert.Equal(t, []float64{1, 0, 0}, DirectionLabel(&up))
	assert.Equal(t, []float64{0, 1, 0}, DirectionLabel(&down))
	assert.Equal(t, []float64{0, 0, 1}, DirectionLabel(&flat))
	assert.Equal(t, []float64{1, 0}, TrendQualityLabel(&up))
	assert.Equal(t, []float64{0, 1}, TrendQualityLabel(&down))
	assert.Equal(t, "down_weak", CompositeLabel(&down))

	assert.Equal(t, []string{"up", "down", "flat"}, LabelNames(LabelDirection))
	assert.Equal(t, []string{"strong", "weak"}, LabelNames(LabelTrendQuality))

	m := BuildLabelMatrix([]models.Episode{up, down}, LabelTrendQuality)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, m)

	_, err := ParseLabelMode("color")
	assert.Error(t, err)
}

func TestWriteFeatureCSV(t *testing.T) {
	var buf bytes.Buffer
	vec := make([]float64, NumFeatures)
	vec[0] = 3
	vec[1] = 0.25
	require.NoError(t, WriteFeatureCSV(&buf, [][]float64{vec}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, FeatureNames, records[0])
	assert.Equal(t, "3", records[1][0])
	assert.Equal(t, "0.25", records[1][1])

	err = WriteFeatureCSV(&bytes.Buffer{}, [][]float64{{1, 2}})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestWriteEpisodeCSV(t *testing.T) {
	var buf bytes.Buffer
	ep := sampleEpisode(models.DirectionUp, models.TrendStrong, nil)
	require.NoError(t, WriteEpisodeCSV(&buf, []models.Episode{ep}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	header, row := records[0], records[1]
	require.Len(t, header, 43)
	assert.Equal(t, "trend_quality", header[10])
	assert.Equal(t, "avg_volume", header[11])

	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("missing column %s", name)
		return ""
	}
	assert.Equal(t, "AAPL", col("ticker"))
	assert.Equal(t, "up", col("direction"))
	assert.Equal(t, "strong", col("trend_quality"))
	assert.Equal(t, "2024-01-02T00:00:00Z", col("start_time"))
	assert.Equal(t, "", col("rsi_start"))
	assert.Equal(t, "60", col("rsi_end"))
}

func TestWriteEnrichedCSV(t *testing.T) {
	var buf bytes.Buffer
	bars := []models.EnrichedBar{{
		Ticker: "AAPL",
		Time:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:  101.5,
		EMA:    f(100),
	}}
	require.NoError(t, WriteEnrichedCSV(&buf, bars))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(EnrichedHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "AAPL,2024-01-02T00:00:00Z,0,0,0,101.5,0,100,,"))
}

package enrich

import (
	"math"

	"TrendLab/internal/domain/models"
)

// stats returns the population mean and standard deviation of vals.
// A zero deviation is reported as 1 so constant columns z-score to 0.
func stats(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 1
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(vals)))
	if std == 0 {
		std = 1
	}
	return mean, std
}

type column struct {
	get  func(*models.EnrichedBar) float64
	norm func(*models.EnrichedBar) *float64
}

type nullableColumn struct {
	get  func(*models.EnrichedBar) *float64
	norm func(*models.EnrichedBar) **float64
}

var priceColumns = []column{
	{func(b *models.EnrichedBar) float64 { return b.Open }, func(b *models.EnrichedBar) *float64 { return &b.OpenNorm }},
	{func(b *models.EnrichedBar) float64 { return b.High }, func(b *models.EnrichedBar) *float64 { return &b.HighNorm }},
	{func(b *models.EnrichedBar) float64 { return b.Low }, func(b *models.EnrichedBar) *float64 { return &b.LowNorm }},
	{func(b *models.EnrichedBar) float64 { return b.Close }, func(b *models.EnrichedBar) *float64 { return &b.CloseNorm }},
	{func(b *models.EnrichedBar) float64 { return b.Volume }, func(b *models.EnrichedBar) *float64 { return &b.VolumeNorm }},
}

var indicatorColumns = []nullableColumn{
	{func(b *models.EnrichedBar) *float64 { return b.EMA }, func(b *models.EnrichedBar) **float64 { return &b.EMANorm }},
	{func(b *models.EnrichedBar) *float64 { return b.RSI }, func(b *models.EnrichedBar) **float64 { return &b.RSINorm }},
	{func(b *models.EnrichedBar) *float64 { return b.OBV }, func(b *models.EnrichedBar) **float64 { return &b.OBVNorm }},
	{func(b *models.EnrichedBar) *float64 { return b.VWAP }, func(b *models.EnrichedBar) **float64 { return &b.VWAPNorm }},
	{func(b *models.EnrichedBar) *float64 { return b.BBUpper }, func(b *models.EnrichedBar) **float64 { return &b.BBUpperNorm }},
	{func(b *models.EnrichedBar) *float64 { return b.BBMiddle }, func(b *models.EnrichedBar) **float64 { return &b.BBMiddleNorm }},
	{func(b *models.EnrichedBar) *float64 { return b.BBLower }, func(b *models.EnrichedBar) **float64 { return &b.BBLowerNorm }},
}

// normalize fills every _norm field in place. A null indicator counts as 0,
// so warm-up bars still get a norm scored against the whole batch.
func normalize(bars []models.EnrichedBar) {
	vals := make([]float64, len(bars))
	for _, col := range priceColumns {
		for i := range bars {
			vals[i] = col.get(&bars[i])
		}
		mean, std := stats(vals)
		for i := range bars {
			*col.norm(&bars[i]) = (vals[i] - mean) / std
		}
	}

	for _, col := range indicatorColumns {
		for i := range bars {
			vals[i] = models.ValueOr(col.get(&bars[i]), 0)
		}
		mean, std := stats(vals)
		for i := range bars {
			*col.norm(&bars[i]) = models.Float64Ptr((vals[i] - mean) / std)
		}
	}
}

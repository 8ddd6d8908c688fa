// Package features encodes episodes into fixed-width feature vectors and label
// matrices, and standardizes them with a persisted scaler.
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"TrendLab/internal/domain/models"
	"TrendLab/pkg/logger"
)

// FeatureNames is the frozen column order of every feature vector.
var FeatureNames = []string{
	"duration", "total_return", "lr_slope_5", "lr_slope_5_norm", "lr_fit_r2_5",
	"avg_volume", "avg_volume_norm", "max_volume", "avg_rsi", "avg_rsi_norm",
	"avg_volatility", "avg_volatility_norm", "obv_change", "obv_change_norm",
	"avg_vwap", "avg_vwap_norm",
	"price_start", "price_end", "price_delta", "price_start_norm", "price_end_norm",
	"rsi_start", "rsi_end", "rsi_start_norm", "rsi_end_norm",
	"vwap_start", "vwap_end", "vwap_start_norm", "vwap_end_norm",
	"obv_start", "obv_end", "obv_start_norm", "obv_end_norm",
	"ema_start", "ema_end", "ema_start_norm", "ema_end_norm",
}

// NumFeatures is the width of a feature vector.
var NumFeatures = len(FeatureNames)

// ImputeStrategy decides what replaces a missing feature value.
type ImputeStrategy string

const (
	ImputeZero     ImputeStrategy = "zero"
	ImputeMean     ImputeStrategy = "mean"
	ImputeMedian   ImputeStrategy = "median"
	ImputeSentinel ImputeStrategy = "sentinel"
)

// SentinelValue marks a missing value under the sentinel strategy.
const SentinelValue = -1.0

func ParseImputeStrategy(s string) (ImputeStrategy, error) {
	switch ImputeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case ImputeZero:
		return ImputeZero, nil
	case ImputeMean:
		return ImputeMean, nil
	case ImputeMedian:
		return ImputeMedian, nil
	case ImputeSentinel, "":
		return ImputeSentinel, nil
	default:
		return "", fmt.Errorf("unknown impute strategy %q", s)
	}
}

// ColumnStats holds per-feature statistics over non-missing values.
type ColumnStats struct {
	Mean   map[string]float64 `json:"mean"`
	Median map[string]float64 `json:"median"`
}

// rawFeatures returns the feature values of ep in FeatureNames order, nil where missing.
func rawFeatures(ep *models.Episode) []*float64 {
	v := func(x float64) *float64 { return &x }
	return []*float64{
		v(float64(ep.Duration)), v(ep.TotalReturn), v(ep.LRSlope), v(ep.LRSlopeNorm), v(ep.LRFitR2),
		v(ep.AvgVolume), v(ep.AvgVolumeNorm), v(ep.MaxVolume), ep.AvgRSI, ep.AvgRSINorm,
		v(ep.AvgVolatility), v(ep.AvgVolatilityNorm), v(ep.OBVChange), v(ep.OBVChangeNorm),
		ep.AvgVWAP, ep.AvgVWAPNorm,
		v(ep.PriceStart), v(ep.PriceEnd), v(ep.PriceDelta), v(ep.PriceStartNorm), v(ep.PriceEndNorm),
		ep.RSIStart, ep.RSIEnd, ep.RSIStartNorm, ep.RSIEndNorm,
		ep.VWAPStart, ep.VWAPEnd, ep.VWAPStartNorm, ep.VWAPEndNorm,
		ep.OBVStart, ep.OBVEnd, ep.OBVStartNorm, ep.OBVEndNorm,
		ep.EMAStart, ep.EMAEnd, ep.EMAStartNorm, ep.EMAEndNorm,
	}
}

func missing(p *float64) bool {
	return p == nil || math.IsNaN(*p) || math.IsInf(*p, 0)
}

// ToFeatureVector encodes ep, replacing missing values according to strategy.
// stats is only consulted by the mean and median strategies and may be nil.
func ToFeatureVector(ep *models.Episode, strategy ImputeStrategy, stats *ColumnStats) []float64 {
	raw := rawFeatures(ep)
	out := make([]float64, len(raw))
	for i, p := range raw {
		if !missing(p) {
			out[i] = *p
			continue
		}
		out[i] = impute(FeatureNames[i], strategy, stats)
	}
	return out
}

func impute(name string, strategy ImputeStrategy, stats *ColumnStats) float64 {
	switch strategy {
	case ImputeZero:
		return 0
	case ImputeMean:
		if stats != nil {
			return stats.Mean[name]
		}
		return 0
	case ImputeMedian:
		if stats != nil {
			return stats.Median[name]
		}
		return 0
	default:
		return SentinelValue
	}
}

// ComputeColumnStats computes the mean and median of every feature over non-missing values.
// Columns without any value are absent from both maps.
func ComputeColumnStats(episodes []models.Episode) *ColumnStats {
	cols := make([][]float64, NumFeatures)
	for i := range episodes {
		for j, p := range rawFeatures(&episodes[i]) {
			if !missing(p) {
				cols[j] = append(cols[j], *p)
			}
		}
	}
	stats := &ColumnStats{
		Mean:   make(map[string]float64, NumFeatures),
		Median: make(map[string]float64, NumFeatures),
	}
	for j, vals := range cols {
		if len(vals) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		stats.Mean[FeatureNames[j]] = sum / float64(len(vals))
		stats.Median[FeatureNames[j]] = median(vals)
	}
	return stats
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MissingValueReport counts missing values per feature and logs the non-zero counts.
func MissingValueReport(episodes []models.Episode, log *logger.Logger) map[string]int {
	if log == nil {
		log = logger.Nop()
	}
	counts := make(map[string]int)
	for i := range episodes {
		for j, p := range rawFeatures(&episodes[i]) {
			if missing(p) {
				counts[FeatureNames[j]]++
			}
		}
	}
	for _, name := range FeatureNames {
		if c := counts[name]; c > 0 {
			log.Info("missing feature values",
				logger.String("feature", name),
				logger.Int("count", c),
				logger.Int("episodes", len(episodes)),
			)
		}
	}
	return counts
}

// BuildFeatureMatrix encodes every episode in order.
func BuildFeatureMatrix(episodes []models.Episode, strategy ImputeStrategy, stats *ColumnStats) [][]float64 {
	out := make([][]float64, len(episodes))
	for i := range episodes {
		out[i] = ToFeatureVector(&episodes[i], strategy, stats)
	}
	return out
}

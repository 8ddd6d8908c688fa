package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"TrendLab/internal/domain/models"
)

// EnrichedHeader is the column order of enriched bar exports.
var EnrichedHeader = []string{
	"ticker", "time", "open", "high", "low", "close", "volume",
	"ema", "rsi", "obv", "vwap", "bb_upper", "bb_middle", "bb_lower",
	"open_norm", "high_norm", "low_norm", "close_norm", "volume_norm",
	"ema_norm", "rsi_norm", "obv_norm", "vwap_norm", "bb_upper_norm", "bb_middle_norm", "bb_lower_norm",
}

// EpisodeHeader is the column order of episode exports: identity columns, then
// the regression block, then the remaining features in FeatureNames order.
var EpisodeHeader = append([]string{
	"ticker", "episode_id", "start_time", "end_time", "duration", "direction",
	"total_return", "lr_slope_5", "lr_slope_5_norm", "lr_fit_r2_5", "trend_quality",
}, FeatureNames[5:]...)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatNullable renders nil as an empty cell.
func formatNullable(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// WriteFeatureCSV writes the FeatureNames header followed by one row per vector.
func WriteFeatureCSV(w io.Writer, matrix [][]float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FeatureNames); err != nil {
		return fmt.Errorf("write feature header: %w", err)
	}
	row := make([]string, NumFeatures)
	for i, vec := range matrix {
		if len(vec) != NumFeatures {
			return &models.DimensionMismatchError{Expected: NumFeatures, Got: len(vec), Row: i}
		}
		for j, v := range vec {
			row[j] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write feature row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEpisodeCSV writes episodes with EpisodeHeader. Missing values are empty cells.
func WriteEpisodeCSV(w io.Writer, episodes []models.Episode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EpisodeHeader); err != nil {
		return fmt.Errorf("write episode header: %w", err)
	}
	for i := range episodes {
		ep := &episodes[i]
		row := []string{
			ep.Ticker, ep.EpisodeID, formatTime(ep.StartTime), formatTime(ep.EndTime),
			strconv.Itoa(ep.Duration), string(ep.Direction),
			formatFloat(ep.TotalReturn), formatFloat(ep.LRSlope), formatFloat(ep.LRSlopeNorm),
			formatFloat(ep.LRFitR2), string(ep.TrendQuality),
		}
		for _, p := range rawFeatures(ep)[5:] {
			row = append(row, formatNullable(p))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write episode %s: %w", ep.EpisodeID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEnrichedCSV writes enriched bars with EnrichedHeader. Warm-up gaps are empty cells.
func WriteEnrichedCSV(w io.Writer, bars []models.EnrichedBar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EnrichedHeader); err != nil {
		return fmt.Errorf("write enriched header: %w", err)
	}
	for i := range bars {
		b := &bars[i]
		row := []string{
			b.Ticker, formatTime(b.Time),
			formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low), formatFloat(b.Close), formatFloat(b.Volume),
			formatNullable(b.EMA), formatNullable(b.RSI), formatNullable(b.OBV), formatNullable(b.VWAP),
			formatNullable(b.BBUpper), formatNullable(b.BBMiddle), formatNullable(b.BBLower),
			formatFloat(b.OpenNorm), formatFloat(b.HighNorm), formatFloat(b.LowNorm), formatFloat(b.CloseNorm), formatFloat(b.VolumeNorm),
			formatNullable(b.EMANorm), formatNullable(b.RSINorm), formatNullable(b.OBVNorm), formatNullable(b.VWAPNorm),
			formatNullable(b.BBUpperNorm), formatNullable(b.BBMiddleNorm), formatNullable(b.BBLowerNorm),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write enriched row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

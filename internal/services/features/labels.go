package features

import (
	"fmt"

	"TrendLab/internal/domain/models"
)

// LabelMode selects the target a label matrix encodes.
type LabelMode string

const (
	LabelDirection    LabelMode = "direction"
	LabelTrendQuality LabelMode = "trend_quality"
)

var (
	directionLabels    = []string{string(models.DirectionUp), string(models.DirectionDown), string(models.DirectionFlat)}
	trendQualityLabels = []string{string(models.TrendStrong), string(models.TrendWeak)}
)

func ParseLabelMode(s string) (LabelMode, error) {
	switch LabelMode(s) {
	case LabelDirection, "":
		return LabelDirection, nil
	case LabelTrendQuality:
		return LabelTrendQuality, nil
	default:
		return "", fmt.Errorf("unknown label mode %q", s)
	}
}

// LabelNames returns the class names of mode in one-hot column order.
func LabelNames(mode LabelMode) []string {
	if mode == LabelTrendQuality {
		return append([]string(nil), trendQualityLabels...)
	}
	return append([]string(nil), directionLabels...)
}

// DirectionLabel one-hot encodes the direction as [up, down, flat].
func DirectionLabel(ep *models.Episode) []float64 {
	out := make([]float64, 3)
	switch ep.Direction {
	case models.DirectionUp:
		out[0] = 1
	case models.DirectionDown:
		out[1] = 1
	default:
		out[2] = 1
	}
	return out
}

// TrendQualityLabel one-hot encodes the trend quality as [strong, weak].
func TrendQualityLabel(ep *models.Episode) []float64 {
	if ep.TrendQuality == models.TrendStrong {
		return []float64{1, 0}
	}
	return []float64{0, 1}
}

// CompositeLabel returns direction_quality, e.g. "down_weak".
func CompositeLabel(ep *models.Episode) string {
	return ep.CompositeLabel()
}

func BuildLabelMatrix(episodes []models.Episode, mode LabelMode) [][]float64 {
	out := make([][]float64, len(episodes))
	for i := range episodes {
		if mode == LabelTrendQuality {
			out[i] = TrendQualityLabel(&episodes[i])
		} else {
			out[i] = DirectionLabel(&episodes[i])
		}
	}
	return out
}

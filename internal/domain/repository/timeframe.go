package repository

import (
	"fmt"
	"time"
)

type Timeframe string

const (
	TF1Min  Timeframe = "1Min"
	TF5Min  Timeframe = "5Min"
	TF15Min Timeframe = "15Min"
	TF30Min Timeframe = "30Min"
	TF1Hour Timeframe = "1Hour"
	TF1Day  Timeframe = "1Day"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1Min, TF5Min, TF15Min, TF30Min, TF1Hour, TF1Day:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1Day }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	if s == "1H" {
		return TF1Hour
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration is the bar width of tf.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1Min:
		return time.Minute
	case TF5Min:
		return 5 * time.Minute
	case TF15Min:
		return 15 * time.Minute
	case TF30Min:
		return 30 * time.Minute
	case TF1Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// ThresholdPolicy maps a timeframe to the reversal threshold used for swing detection.
type ThresholdPolicy map[Timeframe]float64

// DefaultThresholdPolicy returns the built-in reversal thresholds.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		TF1Min:  0.005,
		TF5Min:  0.01,
		TF15Min: 0.015,
		TF30Min: 0.02,
		TF1Hour: 0.03,
		TF1Day:  0.05,
	}
}

// WithOverrides returns a copy of p with the given raw timeframe keys replaced.
func (p ThresholdPolicy) WithOverrides(overrides map[string]float64) (ThresholdPolicy, error) {
	out := make(ThresholdPolicy, len(p))
	for k, v := range p {
		out[k] = v
	}
	for raw, v := range overrides {
		tf := Timeframe(raw)
		if raw == "1H" {
			tf = TF1Hour
		}
		if !IsValidTimeframe(tf) {
			return nil, fmt.Errorf("unknown timeframe %q", raw)
		}
		if v <= 0 || v >= 1 {
			return nil, fmt.Errorf("threshold for %s must be in (0,1), got %v", raw, v)
		}
		out[tf] = v
	}
	return out, nil
}

// Threshold returns the threshold for tf, falling back to the daily value.
func (p ThresholdPolicy) Threshold(tf Timeframe) float64 {
	if v, ok := p[tf]; ok {
		return v
	}
	if v, ok := p[TF1Day]; ok {
		return v
	}
	return 0.05
}

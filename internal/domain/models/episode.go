package models

import "time"

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

type TrendQuality string

const (
	TrendStrong TrendQuality = "strong"
	TrendWeak   TrendQuality = "weak"
)

type SwingType string

const (
	SwingPeak   SwingType = "peak"
	SwingTrough SwingType = "trough"
)

// SwingPoint is a confirmed local extreme in an enriched bar sequence.
type SwingPoint struct {
	Index int       `json:"index"`
	Price float64   `json:"price"`
	Type  SwingType `json:"type"`
}

// Episode is the run of bars between two consecutive swing points,
// inclusive of both endpoints.
type Episode struct {
	Ticker    string    `json:"ticker"`
	EpisodeID string    `json:"episode_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int       `json:"duration"`

	Direction    Direction    `json:"direction"`
	TotalReturn  float64      `json:"total_return"`
	LRSlope      float64      `json:"lr_slope_5"`
	LRSlopeNorm  float64      `json:"lr_slope_5_norm"`
	LRFitR2      float64      `json:"lr_fit_r2_5"`
	TrendQuality TrendQuality `json:"trend_quality"`

	AvgVolume         float64  `json:"avg_volume"`
	AvgVolumeNorm     float64  `json:"avg_volume_norm"`
	MaxVolume         float64  `json:"max_volume"`
	AvgRSI            *float64 `json:"avg_rsi"`
	AvgRSINorm        *float64 `json:"avg_rsi_norm"`
	AvgVolatility     float64  `json:"avg_volatility"`
	AvgVolatilityNorm float64  `json:"avg_volatility_norm"`
	OBVChange         float64  `json:"obv_change"`
	OBVChangeNorm     float64  `json:"obv_change_norm"`
	AvgVWAP           *float64 `json:"avg_vwap"`
	AvgVWAPNorm       *float64 `json:"avg_vwap_norm"`

	PriceStart     float64 `json:"price_start"`
	PriceEnd       float64 `json:"price_end"`
	PriceDelta     float64 `json:"price_delta"`
	PriceStartNorm float64 `json:"price_start_norm"`
	PriceEndNorm   float64 `json:"price_end_norm"`

	RSIStart      *float64 `json:"rsi_start"`
	RSIEnd        *float64 `json:"rsi_end"`
	RSIStartNorm  *float64 `json:"rsi_start_norm"`
	RSIEndNorm    *float64 `json:"rsi_end_norm"`
	VWAPStart     *float64 `json:"vwap_start"`
	VWAPEnd       *float64 `json:"vwap_end"`
	VWAPStartNorm *float64 `json:"vwap_start_norm"`
	VWAPEndNorm   *float64 `json:"vwap_end_norm"`
	OBVStart      *float64 `json:"obv_start"`
	OBVEnd        *float64 `json:"obv_end"`
	OBVStartNorm  *float64 `json:"obv_start_norm"`
	OBVEndNorm    *float64 `json:"obv_end_norm"`
	EMAStart      *float64 `json:"ema_start"`
	EMAEnd        *float64 `json:"ema_end"`
	EMAStartNorm  *float64 `json:"ema_start_norm"`
	EMAEndNorm    *float64 `json:"ema_end_norm"`

	StartFeatures *EnrichedBar `json:"start_features,omitempty"`
	EndFeatures   *EnrichedBar `json:"end_features,omitempty"`
}

// CompositeLabel joins direction and trend quality, e.g. "up_strong".
func (e *Episode) CompositeLabel() string {
	return string(e.Direction) + "_" + string(e.TrendQuality)
}

package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RawTime is a bar timestamp as it arrived from a source: epoch seconds,
// epoch milliseconds or an ISO-8601 string. JSON numbers and strings are both accepted.
type RawTime string

func (t *RawTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*t = RawTime(str)
		return nil
	}
	*t = RawTime(s)
	return nil
}

// RawTimeOf formats an instant the way market data clients hand it to us.
func RawTimeOf(ts time.Time) RawTime {
	return RawTime(ts.UTC().Format(time.RFC3339Nano))
}

// RawBar is one OHLCV observation before normalization.
type RawBar struct {
	Ticker string   `json:"ticker"`
	Time   RawTime  `json:"time"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// UnmarshalJSON also accepts "start" as the time key.
func (b *RawBar) UnmarshalJSON(data []byte) error {
	type alias RawBar
	aux := struct {
		*alias
		Start RawTime `json:"start"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.Time == "" {
		b.Time = aux.Start
	}
	return nil
}

// EnrichedBar is a normalized bar with indicators and z-scored counterparts.
// Indicator fields are nil until their lookback window has filled.
type EnrichedBar struct {
	Ticker string    `json:"ticker"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	EMA      *float64 `json:"ema"`
	RSI      *float64 `json:"rsi"`
	OBV      *float64 `json:"obv"`
	VWAP     *float64 `json:"vwap"`
	BBUpper  *float64 `json:"bb_upper"`
	BBMiddle *float64 `json:"bb_middle"`
	BBLower  *float64 `json:"bb_lower"`

	OpenNorm   float64 `json:"open_norm"`
	HighNorm   float64 `json:"high_norm"`
	LowNorm    float64 `json:"low_norm"`
	CloseNorm  float64 `json:"close_norm"`
	VolumeNorm float64 `json:"volume_norm"`

	EMANorm      *float64 `json:"ema_norm"`
	RSINorm      *float64 `json:"rsi_norm"`
	OBVNorm      *float64 `json:"obv_norm"`
	VWAPNorm     *float64 `json:"vwap_norm"`
	BBUpperNorm  *float64 `json:"bb_upper_norm"`
	BBMiddleNorm *float64 `json:"bb_middle_norm"`
	BBLowerNorm  *float64 `json:"bb_lower_norm"`
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// ValueOr dereferences p or returns def when p is nil.
func ValueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

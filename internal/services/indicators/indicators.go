// Package indicators computes technical indicators over time-ordered series.
// Every function returns a fresh, time-aligned series that is shorter than its
// input by the warm-up length of the indicator. Inputs are never modified.
package indicators

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"
)

// Point is one observation of a scalar series.
type Point struct {
	Time  time.Time
	Value float64
}

// VolumePoint is a price observation paired with its traded volume.
type VolumePoint struct {
	Time   time.Time
	Price  float64
	Volume float64
}

// BollingerPoint holds the three bands at one instant.
type BollingerPoint struct {
	Time   time.Time
	Upper  float64
	Middle float64
	Lower  float64
}

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      []Point
	Signal    []Point
	Histogram []Point
}

const (
	DefaultBollingerPeriod = 20
	DefaultBollingerMult   = 2.0
)

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// fromTalib drops the warm-up prefix talib pads with zeros.
func fromTalib(points []Point, series []float64, lookback int) []Point {
	out := make([]Point, 0, len(points)-lookback)
	for i := lookback; i < len(points); i++ {
		out = append(out, Point{Time: points[i].Time, Value: series[i]})
	}
	return out
}

// SMA is the simple moving average. The first value aligns with points[period-1].
func SMA(points []Point, period int) []Point {
	if period < 1 || len(points) < period {
		return []Point{}
	}
	return fromTalib(points, talib.Sma(values(points), period), period-1)
}

// WMA is the linearly weighted moving average, newest point weighted highest.
func WMA(points []Point, period int) []Point {
	if period < 1 || len(points) < period {
		return []Point{}
	}
	return fromTalib(points, talib.Wma(values(points), period), period-1)
}

// EMA is seeded with the SMA of the first period points and smoothed with
// k = 2/(period+1). The first value aligns with points[period].
func EMA(points []Point, period int) []Point {
	if period < 1 || len(points) <= period {
		return []Point{}
	}
	k := 2.0 / float64(period+1)
	prev := 0.0
	for i := 0; i < period; i++ {
		prev += points[i].Value
	}
	prev /= float64(period)

	out := make([]Point, 0, len(points)-period)
	for i := period; i < len(points); i++ {
		prev = points[i].Value*k + prev*(1-k)
		out = append(out, Point{Time: points[i].Time, Value: prev})
	}
	return out
}

// RSI averages gains and losses over the trailing period+1 points.
// A window without losses yields exactly 100. The first value aligns with points[period].
func RSI(points []Point, period int) []Point {
	if period < 1 || len(points) <= period {
		return []Point{}
	}
	out := make([]Point, 0, len(points)-period)
	for i := period; i < len(points); i++ {
		gain, loss := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			d := points[j].Value - points[j-1].Value
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)

		rsi := 100.0
		if avgLoss != 0 {
			rsi = 100 - 100/(1+avgGain/avgLoss)
		}
		out = append(out, Point{Time: points[i].Time, Value: rsi})
	}
	return out
}

// MACD computes EMA12-EMA26, its EMA9 signal and the histogram.
// Series are aligned by trimming the front of the longer one.
func MACD(points []Point) MACDResult {
	fast := EMA(points, 12)
	slow := EMA(points, 26)
	if len(slow) == 0 {
		return MACDResult{MACD: []Point{}, Signal: []Point{}, Histogram: []Point{}}
	}

	offset := len(fast) - len(slow)
	line := make([]Point, len(slow))
	for i := range slow {
		line[i] = Point{Time: slow[i].Time, Value: fast[i+offset].Value - slow[i].Value}
	}

	signal := EMA(line, 9)
	offset = len(line) - len(signal)
	hist := make([]Point, len(signal))
	for i := range signal {
		hist[i] = Point{Time: signal[i].Time, Value: line[i+offset].Value - signal[i].Value}
	}
	return MACDResult{MACD: line, Signal: signal, Histogram: hist}
}

// OBV accumulates volume from zero: added on an up close, subtracted on a down close.
// The first value aligns with points[1].
func OBV(points []VolumePoint) []Point {
	if len(points) < 2 {
		return []Point{}
	}
	out := make([]Point, 0, len(points)-1)
	obv := 0.0
	for i := 1; i < len(points); i++ {
		switch {
		case points[i].Price > points[i-1].Price:
			obv += points[i].Volume
		case points[i].Price < points[i-1].Price:
			obv -= points[i].Volume
		}
		out = append(out, Point{Time: points[i].Time, Value: obv})
	}
	return out
}

// VWAP is the cumulative volume-weighted average price from the first point.
// Non-finite points are skipped and nothing is emitted while cumulative volume is zero.
func VWAP(points []VolumePoint) []Point {
	out := make([]Point, 0, len(points))
	cumPV, cumVol := 0.0, 0.0
	for _, p := range points {
		if !finite(p.Price) || !finite(p.Volume) {
			continue
		}
		cumPV += p.Price * p.Volume
		cumVol += p.Volume
		if cumVol == 0 {
			continue
		}
		out = append(out, Point{Time: p.Time, Value: cumPV / cumVol})
	}
	return out
}

// Bollinger computes rolling mean ± mult population standard deviations.
// The first value aligns with points[period-1].
func Bollinger(points []Point, period int, mult float64) []BollingerPoint {
	middle := SMA(points, period)
	if len(middle) == 0 {
		return []BollingerPoint{}
	}
	out := make([]BollingerPoint, len(middle))
	for i, m := range middle {
		window := points[i : i+period]
		variance := 0.0
		for _, p := range window {
			d := p.Value - m.Value
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		out[i] = BollingerPoint{
			Time:   m.Time,
			Upper:  m.Value + mult*sd,
			Middle: m.Value,
			Lower:  m.Value - mult*sd,
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func series(vals ...float64) []Point {
	out := make([]Point, len(vals))
	for i, v := range vals {
		out[i] = Point{Time: t0.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return out
}

func vseries(prices, volumes []float64) []VolumePoint {
	out := make([]VolumePoint, len(prices))
	for i := range prices {
		out[i] = VolumePoint{Time: t0.Add(time.Duration(i) * time.Minute), Price: prices[i], Volume: volumes[i]}
	}
	return out
}

func pointValues(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func TestSMA(t *testing.T) {
	in := series(1, 2, 3, 4, 5)
	out := SMA(in, 3)
	require.Len(t, out, 3)
	assert.InDeltaSlice(t, []float64{2, 3, 4}, pointValues(out), 1e-12)
	assert.Equal(t, in[2].Time, out[0].Time)
	assert.Equal(t, in[4].Time, out[2].Time)
}

func TestSMA_ShortInput(t *testing.T) {
	assert.Empty(t, SMA(series(1, 2), 3))
	assert.Empty(t, SMA(nil, 3))
	assert.Empty(t, SMA(series(1, 2), 0))
}

func TestWMA(t *testing.T) {
	out := WMA(series(1, 2, 3, 4), 3)
	require.Len(t, out, 2)
	assert.InDelta(t, 14.0/6.0, out[0].Value, 1e-12)
	assert.InDelta(t, 20.0/6.0, out[1].Value, 1e-12)
}

func TestEMA(t *testing.T) {
	in := series(1, 2, 3, 4, 5)
	out := EMA(in, 3)
	require.Len(t, out, 2)
	assert.InDeltaSlice(t, []float64{3, 4}, pointValues(out), 1e-12)
	assert.Equal(t, in[3].Time, out[0].Time)
}

func TestEMA_LengthAtMostPeriodIsEmpty(t *testing.T) {
	assert.Empty(t, EMA(series(1, 2, 3), 3))
	assert.Empty(t, EMA(series(1, 2), 3))
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name string
		in   []Point
		want []float64
	}{
		{name: "alternating", in: series(1, 2, 1, 2), want: []float64{50, 50}},
		{name: "monotonic up", in: series(1, 2, 3, 4, 5), want: []float64{100, 100, 100}},
		{name: "flat", in: series(7, 7, 7, 7), want: []float64{100, 100}},
		{name: "monotonic down", in: series(5, 4, 3), want: []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RSI(tt.in, 2)
			require.Len(t, out, len(tt.in)-2)
			assert.InDeltaSlice(t, tt.want, pointValues(out), 1e-12)
			assert.Equal(t, tt.in[2].Time, out[0].Time)
		})
	}
}

func TestRSI_Bounded(t *testing.T) {
	in := series(44, 44.3, 44.1, 44.5, 43.9, 44.8, 45.1, 44.7, 45.4, 45.2, 46, 45.7, 46.3, 46.1, 45.8, 46.4, 46.2)
	for _, p := range RSI(in, 14) {
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.LessOrEqual(t, p.Value, 100.0)
	}
	assert.Empty(t, RSI(series(1, 2, 3), 14))
}

func TestMACD_Alignment(t *testing.T) {
	vals := make([]float64, 40)
	for i := range vals {
		vals[i] = 100
	}
	res := MACD(series(vals...))
	require.Len(t, res.MACD, 14)
	require.Len(t, res.Signal, 5)
	require.Len(t, res.Histogram, 5)
	for _, p := range res.Histogram {
		assert.InDelta(t, 0, p.Value, 1e-9)
	}
	assert.Equal(t, res.Signal[0].Time, res.Histogram[0].Time)
	assert.Equal(t, res.MACD[len(res.MACD)-1].Time, res.Histogram[len(res.Histogram)-1].Time)
}

func TestMACD_ShortInput(t *testing.T) {
	res := MACD(series(1, 2, 3))
	assert.Empty(t, res.MACD)
	assert.Empty(t, res.Signal)
	assert.Empty(t, res.Histogram)
}

func TestOBV(t *testing.T) {
	in := vseries([]float64{10, 11, 10, 10}, []float64{1, 2, 3, 4})
	out := OBV(in)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{2, -1, -1}, pointValues(out))
	assert.Equal(t, in[1].Time, out[0].Time)
	assert.Empty(t, OBV(in[:1]))
}

func TestVWAP(t *testing.T) {
	in := vseries(
		[]float64{10, math.NaN(), 12, 14},
		[]float64{0, 5, 2, 2},
	)
	out := VWAP(in)
	require.Len(t, out, 2)
	assert.Equal(t, in[2].Time, out[0].Time)
	assert.InDelta(t, 12, out[0].Value, 1e-12)
	assert.InDelta(t, 13, out[1].Value, 1e-12)
}

func TestBollinger(t *testing.T) {
	out := Bollinger(series(1, 2, 3, 4), 3, 2)
	require.Len(t, out, 2)
	sd := math.Sqrt(2.0 / 3.0)
	assert.InDelta(t, 2, out[0].Middle, 1e-12)
	assert.InDelta(t, 2+2*sd, out[0].Upper, 1e-12)
	assert.InDelta(t, 2-2*sd, out[0].Lower, 1e-12)
	assert.InDelta(t, 3, out[1].Middle, 1e-12)
	assert.Empty(t, Bollinger(series(1, 2), DefaultBollingerPeriod, DefaultBollingerMult))
}

func TestInputsNotMutated(t *testing.T) {
	in := series(3, 1, 4, 1, 5, 9, 2, 6)
	snapshot := append([]Point(nil), in...)
	_ = SMA(in, 3)
	_ = EMA(in, 3)
	_ = RSI(in, 3)
	_ = Bollinger(in, 3, 2)
	assert.Equal(t, snapshot, in)
}

// Package enrich turns raw OHLCV bars into sorted, de-duplicated bars carrying
// indicators and z-scored columns.
package enrich

import (
	"errors"
	"math"
	"sort"
	"time"

	"TrendLab/internal/domain/models"
	"TrendLab/internal/services/indicators"
	"TrendLab/pkg/logger"
)

const (
	DefaultEMAPeriod = 14
	DefaultRSIPeriod = 14
)

type Enricher struct {
	emaPeriod int
	rsiPeriod int
	bbPeriod  int
	bbMult    float64
	log       *logger.Logger
}

type Option func(*Enricher)

func WithEMAPeriod(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.emaPeriod = n
		}
	}
}

func WithRSIPeriod(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.rsiPeriod = n
		}
	}
}

func WithBollinger(period int, mult float64) Option {
	return func(e *Enricher) {
		if period > 0 {
			e.bbPeriod = period
		}
		if mult > 0 {
			e.bbMult = mult
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.log = l
		}
	}
}

func New(opts ...Option) *Enricher {
	e := &Enricher{
		emaPeriod: DefaultEMAPeriod,
		rsiPeriod: DefaultRSIPeriod,
		bbPeriod:  indicators.DefaultBollingerPeriod,
		bbMult:    indicators.DefaultBollingerMult,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge flattens the sources in order and enriches them as one batch.
// On duplicate timestamps the bar from the later source wins.
func (e *Enricher) Merge(sources ...[]models.RawBar) ([]models.EnrichedBar, error) {
	total := 0
	for _, s := range sources {
		total += len(s)
	}
	all := make([]models.RawBar, 0, total)
	for _, s := range sources {
		all = append(all, s...)
	}
	return e.Enrich(all)
}

type normalized struct {
	ticker string
	ts     time.Time
	open   float64
	high   float64
	low    float64
	close  float64
	volume float64
}

// Enrich normalizes, sorts and de-duplicates raw bars and attaches indicators.
// The first unparseable timestamp aborts the batch.
func (e *Enricher) Enrich(raw []models.RawBar) ([]models.EnrichedBar, error) {
	if len(raw) == 0 {
		return []models.EnrichedBar{}, nil
	}

	rows := make([]normalized, len(raw))
	for i, r := range raw {
		ts, err := ParseTimestamp(r.Time)
		if err != nil {
			var tsErr *models.TimestampError
			if errors.As(err, &tsErr) {
				tsErr.Row = i
			}
			e.log.Warn("enrich: rejecting batch", logger.Int("row", i), logger.Error(err))
			return nil, err
		}
		closePx := safeFloat(r.Close, 0)
		rows[i] = normalized{
			ticker: r.Ticker,
			ts:     ts,
			open:   safePtr(r.Open, closePx),
			high:   safePtr(r.High, closePx),
			low:    safePtr(r.Low, closePx),
			close:  closePx,
			volume: safePtr(r.Volume, 0),
		}
	}

	rows = dedupeLastWins(rows)
	out := e.attachIndicators(rows)
	normalize(out)

	e.log.Debug("enrich: batch done", logger.Int("input", len(raw)), logger.Int("output", len(out)))
	return out, nil
}

// dedupeLastWins stable-sorts by time and keeps the last occurrence of each timestamp.
func dedupeLastWins(rows []normalized) []normalized {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })
	out := rows[:0]
	for i := 0; i < len(rows); i++ {
		if i+1 < len(rows) && rows[i+1].ts.Equal(rows[i].ts) {
			continue
		}
		out = append(out, rows[i])
	}
	return out
}

func (e *Enricher) attachIndicators(rows []normalized) []models.EnrichedBar {
	closes := make([]indicators.Point, len(rows))
	priced := make([]indicators.VolumePoint, len(rows))
	for i, r := range rows {
		closes[i] = indicators.Point{Time: r.ts, Value: r.close}
		priced[i] = indicators.VolumePoint{Time: r.ts, Price: r.close, Volume: r.volume}
	}

	ema := byTime(indicators.EMA(closes, e.emaPeriod))
	rsi := byTime(indicators.RSI(closes, e.rsiPeriod))
	obv := byTime(indicators.OBV(priced))
	vwap := byTime(indicators.VWAP(priced))
	bands := make(map[int64]indicators.BollingerPoint)
	for _, b := range indicators.Bollinger(closes, e.bbPeriod, e.bbMult) {
		bands[b.Time.Unix()] = b
	}

	out := make([]models.EnrichedBar, len(rows))
	for i, r := range rows {
		key := r.ts.Unix()
		bar := models.EnrichedBar{
			Ticker: r.ticker,
			Time:   r.ts,
			Open:   r.open,
			High:   r.high,
			Low:    r.low,
			Close:  r.close,
			Volume: r.volume,
			EMA:    lookup(ema, key),
			RSI:    lookup(rsi, key),
			OBV:    lookup(obv, key),
			VWAP:   lookup(vwap, key),
		}
		if b, ok := bands[key]; ok {
			bar.BBUpper = models.Float64Ptr(b.Upper)
			bar.BBMiddle = models.Float64Ptr(b.Middle)
			bar.BBLower = models.Float64Ptr(b.Lower)
		}
		out[i] = bar
	}
	return out
}

func byTime(points []indicators.Point) map[int64]float64 {
	m := make(map[int64]float64, len(points))
	for _, p := range points {
		m[p.Time.Unix()] = p.Value
	}
	return m
}

func lookup(m map[int64]float64, key int64) *float64 {
	if v, ok := m[key]; ok {
		return models.Float64Ptr(v)
	}
	return nil
}

func safeFloat(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func safePtr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return safeFloat(*p, def)
}

package episodes

import (
	"fmt"

	"TrendLab/internal/domain/models"
	"TrendLab/pkg/logger"
)

// EpisodeTimeLayout formats the timestamps inside an episode id.
const EpisodeTimeLayout = "2006-01-02T15:04:05"

// StrongTrendR2 is the regression fit above which an episode counts as a strong trend.
const StrongTrendR2 = 0.7

// Builder is stateless apart from its logger and is safe for concurrent use.
type Builder struct {
	log *logger.Logger
}

type Option func(*Builder)

func WithLogger(l *logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{log: logger.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build segments bars into episodes with a default builder.
func Build(bars []models.EnrichedBar, threshold float64) []models.Episode {
	return NewBuilder().Build(bars, threshold)
}

// Build pairs consecutive swings and aggregates the inclusive bar segment between them.
func (b *Builder) Build(bars []models.EnrichedBar, threshold float64) []models.Episode {
	swings := DetectSwings(bars, threshold)
	if len(swings) < 2 {
		return []models.Episode{}
	}
	out := make([]models.Episode, 0, len(swings)-1)
	for k := 0; k+1 < len(swings); k++ {
		a, z := swings[k].Index, swings[k+1].Index
		out = append(out, buildEpisode(bars[a:z+1]))
	}
	b.log.Debug("episodes built",
		logger.String("ticker", bars[0].Ticker),
		logger.Int("bars", len(bars)),
		logger.Int("episodes", len(out)),
		logger.Float64("threshold", threshold),
	)
	return out
}

// EpisodeID renders TICKER_start_end.
func EpisodeID(ticker string, start, end models.EnrichedBar) string {
	return fmt.Sprintf("%s_%s_%s", ticker,
		start.Time.UTC().Format(EpisodeTimeLayout),
		end.Time.UTC().Format(EpisodeTimeLayout))
}

func buildEpisode(seg []models.EnrichedBar) models.Episode {
	start, exit := seg[0], seg[len(seg)-1]

	ep := models.Episode{
		Ticker:    start.Ticker,
		EpisodeID: EpisodeID(start.Ticker, start, exit),
		StartTime: start.Time,
		EndTime:   exit.Time,
		Duration:  len(seg),
	}

	if start.Close != 0 {
		ep.TotalReturn = exit.Close/start.Close - 1
	}
	switch {
	case exit.Close > start.Close:
		ep.Direction = models.DirectionUp
	case exit.Close < start.Close:
		ep.Direction = models.DirectionDown
	default:
		ep.Direction = models.DirectionFlat
	}

	slope, r2 := regression(seg)
	ep.LRSlope = slope
	ep.LRFitR2 = r2
	base := start.Close
	if base == 0 {
		base = 1
	}
	ep.LRSlopeNorm = slope / base
	ep.TrendQuality = models.TrendWeak
	if r2 > StrongTrendR2 {
		ep.TrendQuality = models.TrendStrong
	}

	var volSum, volNormSum, volatility, volatilityNorm float64
	for i, bar := range seg {
		volSum += bar.Volume
		volNormSum += bar.VolumeNorm
		if i == 0 || bar.Volume > ep.MaxVolume {
			ep.MaxVolume = bar.Volume
		}
		if bar.Close != 0 {
			volatility += (bar.High - bar.Low) / bar.Close
		}
		if bar.CloseNorm != 0 {
			volatilityNorm += (bar.High - bar.Low) / bar.CloseNorm
		}
	}
	n := float64(len(seg))
	ep.AvgVolume = volSum / n
	ep.AvgVolumeNorm = volNormSum / n
	ep.AvgVolatility = volatility / n
	ep.AvgVolatilityNorm = volatilityNorm / n

	ep.AvgRSI = nullableMean(seg, func(b *models.EnrichedBar) *float64 { return b.RSI })
	ep.AvgRSINorm = nullableMean(seg, func(b *models.EnrichedBar) *float64 { return b.RSINorm })
	ep.AvgVWAP = nullableMean(seg, func(b *models.EnrichedBar) *float64 { return b.VWAP })
	ep.AvgVWAPNorm = nullableMean(seg, func(b *models.EnrichedBar) *float64 { return b.VWAPNorm })

	ep.OBVChange = models.ValueOr(exit.OBV, 0) - models.ValueOr(start.OBV, 0)
	ep.OBVChangeNorm = models.ValueOr(exit.OBVNorm, 0) - models.ValueOr(start.OBVNorm, 0)

	ep.PriceStart = start.Close
	ep.PriceEnd = exit.Close
	ep.PriceDelta = exit.Close - start.Close
	ep.PriceStartNorm = start.CloseNorm
	ep.PriceEndNorm = exit.CloseNorm

	ep.RSIStart, ep.RSIEnd = clone(start.RSI), clone(exit.RSI)
	ep.RSIStartNorm, ep.RSIEndNorm = clone(start.RSINorm), clone(exit.RSINorm)
	ep.VWAPStart, ep.VWAPEnd = clone(start.VWAP), clone(exit.VWAP)
	ep.VWAPStartNorm, ep.VWAPEndNorm = clone(start.VWAPNorm), clone(exit.VWAPNorm)
	ep.OBVStart, ep.OBVEnd = clone(start.OBV), clone(exit.OBV)
	ep.OBVStartNorm, ep.OBVEndNorm = clone(start.OBVNorm), clone(exit.OBVNorm)
	ep.EMAStart, ep.EMAEnd = clone(start.EMA), clone(exit.EMA)
	ep.EMAStartNorm, ep.EMAEndNorm = clone(start.EMANorm), clone(exit.EMANorm)

	ep.StartFeatures = &start
	ep.EndFeatures = &exit
	return ep
}

// regression fits close against the bar index by ordinary least squares.
func regression(seg []models.EnrichedBar) (slope, r2 float64) {
	n := float64(len(seg))
	var sx, sy float64
	for i, bar := range seg {
		sx += float64(i)
		sy += bar.Close
	}
	mx, my := sx/n, sy/n

	var sxy, sxx float64
	for i, bar := range seg {
		dx := float64(i) - mx
		sxy += dx * (bar.Close - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, 0
	}
	slope = sxy / sxx
	intercept := my - slope*mx

	var ssRes, ssTot float64
	for i, bar := range seg {
		fit := intercept + slope*float64(i)
		ssRes += (bar.Close - fit) * (bar.Close - fit)
		ssTot += (bar.Close - my) * (bar.Close - my)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}

func nullableMean(seg []models.EnrichedBar, get func(*models.EnrichedBar) *float64) *float64 {
	sum, count := 0.0, 0
	for i := range seg {
		if v := get(&seg[i]); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return models.Float64Ptr(sum / float64(count))
}

func clone(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return models.Float64Ptr(*p)
}

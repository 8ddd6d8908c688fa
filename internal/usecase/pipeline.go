package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	pmetrics "TrendLab/internal/service/metrics"
	"TrendLab/internal/services/enrich"
	"TrendLab/internal/services/episodes"
	"TrendLab/internal/services/features"
	"TrendLab/pkg/logger"
)

// PipelineUseCase runs the enrich, segment and encode stages.
type PipelineUseCase struct {
	enricher *enrich.Enricher
	builder  *episodes.Builder
	policy   drepo.ThresholdPolicy
	workers  int
	log      *logger.Logger
}

func NewPipelineUseCase(enr *enrich.Enricher, b *episodes.Builder, policy drepo.ThresholdPolicy, workers int, l *logger.Logger) *PipelineUseCase {
	if enr == nil {
		enr = enrich.New()
	}
	if b == nil {
		b = episodes.NewBuilder()
	}
	if policy == nil {
		policy = drepo.DefaultThresholdPolicy()
	}
	if workers <= 0 {
		workers = 1
	}
	if l == nil {
		l = logger.Nop()
	}
	return &PipelineUseCase{enricher: enr, builder: b, policy: policy, workers: workers, log: l}
}

// Threshold returns override when it is positive, else the policy value for tf.
func (uc *PipelineUseCase) Threshold(tf drepo.Timeframe, override float64) float64 {
	if override > 0 {
		return override
	}
	return uc.policy.Threshold(tf)
}

func (uc *PipelineUseCase) EnrichBars(ctx context.Context, raw []models.RawBar) ([]models.EnrichedBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := uc.enricher.Enrich(raw)
	pmetrics.ObserveStage("enrich", start, err)
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	pmetrics.BarsEnriched.Observe(float64(len(out)))
	return out, nil
}

func (uc *PipelineUseCase) BuildEpisodes(ctx context.Context, bars []models.EnrichedBar, threshold float64) ([]models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0,1), got %v", threshold)
	}
	start := time.Now()
	out := uc.builder.Build(bars, threshold)
	pmetrics.ObserveStage("episodes", start, nil)
	pmetrics.EpisodesBuilt.Observe(float64(len(out)))
	return out, nil
}

// EpisodesFromRaw enriches raw and segments the result.
func (uc *PipelineUseCase) EpisodesFromRaw(ctx context.Context, raw []models.RawBar, threshold float64) ([]models.Episode, error) {
	bars, err := uc.EnrichBars(ctx, raw)
	if err != nil {
		return nil, err
	}
	return uc.BuildEpisodes(ctx, bars, threshold)
}

// EncodeFeatures builds the unscaled feature matrix. Column stats are computed
// over eps and returned so callers can reuse them for later batches.
func (uc *PipelineUseCase) EncodeFeatures(eps []models.Episode, strategy features.ImputeStrategy) ([][]float64, *features.ColumnStats) {
	start := time.Now()
	stats := features.ComputeColumnStats(eps)
	features.MissingValueReport(eps, uc.log)
	matrix := features.BuildFeatureMatrix(eps, strategy, stats)
	pmetrics.ObserveStage("features", start, nil)
	return matrix, stats
}

// TickerResult is the outcome of one ticker in Run. Err is set instead of the
// other fields when that ticker failed.
type TickerResult struct {
	Ticker   string               `json:"ticker"`
	Bars     int                  `json:"bars"`
	Enriched []models.EnrichedBar `json:"-"`
	Episodes []models.Episode     `json:"episodes,omitempty"`
	Features [][]float64          `json:"features,omitempty"`
	Err      error                `json:"-"`
}

// Run processes every ticker batch on a bounded pool of workers. Results come
// back sorted by ticker and a failing ticker does not stop the others.
func (uc *PipelineUseCase) Run(ctx context.Context, batches map[string][]models.RawBar, threshold float64, strategy features.ImputeStrategy) []TickerResult {
	tickers := make([]string, 0, len(batches))
	for t := range batches {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	results := make([]TickerResult, len(tickers))
	sem := make(chan struct{}, uc.workers)
	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = TickerResult{Ticker: t, Err: ctx.Err()}
				return
			}
			results[i] = uc.runTicker(ctx, t, batches[t], threshold, strategy)
		}(i, t)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			uc.log.Warn("pipeline ticker failed", logger.String("ticker", r.Ticker), logger.Error(r.Err))
		}
	}
	uc.log.Info("pipeline run done",
		logger.Int("tickers", len(results)),
		logger.Int("failed", failed),
		logger.Float64("threshold", threshold),
	)
	return results
}

func (uc *PipelineUseCase) runTicker(ctx context.Context, ticker string, raw []models.RawBar, threshold float64, strategy features.ImputeStrategy) TickerResult {
	res := TickerResult{Ticker: ticker, Bars: len(raw)}
	bars := make([]models.RawBar, len(raw))
	copy(bars, raw)
	for i := range bars {
		if bars[i].Ticker == "" {
			bars[i].Ticker = strings.ToUpper(ticker)
		}
	}
	enriched, err := uc.EnrichBars(ctx, bars)
	if err != nil {
		res.Err = err
		return res
	}
	eps, err := uc.BuildEpisodes(ctx, enriched, threshold)
	if err != nil {
		res.Err = err
		return res
	}
	res.Enriched = enriched
	res.Episodes = eps
	res.Features, _ = uc.EncodeFeatures(eps, strategy)
	return res
}

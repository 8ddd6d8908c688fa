package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	dsvc "TrendLab/internal/domain/service"
	pmetrics "TrendLab/internal/service/metrics"
	"TrendLab/internal/services/features"
	"TrendLab/pkg/logger"
)

const DefaultMinConfidence = 0.7

// OverlayUseCase scores the episodes of a chart window with a trained classifier.
type OverlayUseCase struct {
	bars       drepo.BarSource
	pipeline   *PipelineUseCase
	scalers    drepo.ScalerStore
	classifier dsvc.TrendClassifier
	minConf    float64
	log        *logger.Logger
}

func NewOverlayUseCase(bars drepo.BarSource, p *PipelineUseCase, scalers drepo.ScalerStore, c dsvc.TrendClassifier, l *logger.Logger) *OverlayUseCase {
	if l == nil {
		l = logger.Nop()
	}
	return &OverlayUseCase{bars: bars, pipeline: p, scalers: scalers, classifier: c, minConf: DefaultMinConfidence, log: l}
}

// SetMinConfidence changes the floor used when a request does not set one.
func (uc *OverlayUseCase) SetMinConfidence(v float64) {
	if v > 0 && v <= 1 {
		uc.minConf = v
	}
}

type OverlayParams struct {
	Ticker        string
	Timeframe     drepo.Timeframe
	Start         time.Time
	End           time.Time
	Scaler        string
	MinConfidence float64
}

type OverlayResult struct {
	Ticker      string              `json:"ticker"`
	Timeframe   string              `json:"timeframe"`
	Threshold   float64             `json:"threshold"`
	Episodes    int                 `json:"episodes"`
	Predictions []models.Prediction `json:"predictions"`
}

// Predict fetches bars, builds episodes with the timeframe threshold, scales
// them with a stored scaler and keeps predictions at or above the confidence floor.
func (uc *OverlayUseCase) Predict(ctx context.Context, p OverlayParams) (*OverlayResult, error) {
	if uc.classifier == nil {
		return nil, fmt.Errorf("classifier not configured")
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = uc.minConf
	}
	threshold := uc.pipeline.Threshold(p.Timeframe, 0)
	res := &OverlayResult{
		Ticker:      p.Ticker,
		Timeframe:   string(p.Timeframe),
		Threshold:   threshold,
		Predictions: []models.Prediction{},
	}

	raw, err := uc.bars.GetBars(ctx, p.Ticker, p.Timeframe, p.Start, p.End, 10000)
	if err != nil {
		return nil, err
	}
	eps, err := uc.pipeline.EpisodesFromRaw(ctx, raw, threshold)
	if err != nil {
		return nil, err
	}
	res.Episodes = len(eps)
	if len(eps) == 0 {
		return res, nil
	}

	scaler, err := uc.loadScaler(ctx, p.Scaler)
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(scaler.Encode(eps))
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}

	start := time.Now()
	probs, err := uc.classifier.Predict(ctx, scaled)
	pmetrics.ObserveStage("predict", start, err)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(probs) != len(eps) {
		return nil, &models.DimensionMismatchError{Expected: len(eps), Got: len(probs), Row: -1}
	}

	names := scaler.LabelNames()
	if len(names) == 0 {
		names = features.LabelNames(features.LabelDirection)
	}
	for i, row := range probs {
		if len(row) != len(names) {
			return nil, &models.DimensionMismatchError{Expected: len(names), Got: len(row), Row: i}
		}
		idx, conf := features.ArgMax(row)
		label := names[idx]
		kept := conf >= p.MinConfidence
		pmetrics.Predictions.WithLabelValues(label, strconv.FormatBool(kept)).Inc()
		if !kept {
			continue
		}
		ep := &eps[i]
		res.Predictions = append(res.Predictions, models.Prediction{
			EpisodeID:     ep.EpisodeID,
			Ticker:        ep.Ticker,
			StartTime:     ep.StartTime,
			EndTime:       ep.EndTime,
			Label:         label,
			ClassIndex:    idx,
			Confidence:    conf,
			Probabilities: row,
		})
	}
	uc.log.Info("overlay predicted",
		logger.String("ticker", p.Ticker),
		logger.String("timeframe", string(p.Timeframe)),
		logger.Int("episodes", len(eps)),
		logger.Int("kept", len(res.Predictions)),
	)
	return res, nil
}

func (uc *OverlayUseCase) loadScaler(ctx context.Context, name string) (*features.Scaler, error) {
	if uc.scalers == nil {
		return nil, fmt.Errorf("scaler store not configured")
	}
	blob, err := uc.scalers.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	s, err := features.LoadScaler(blob, features.WithScalerLogger(uc.log))
	if err != nil {
		return nil, fmt.Errorf("load scaler %s: %w", name, err)
	}
	return s, nil
}

// ScaledFeatures is a feature matrix encoded and standardized with a stored scaler.
type ScaledFeatures struct {
	Matrix   [][]float64
	Strategy features.ImputeStrategy
	Stats    *features.ColumnStats
}

// Scale encodes eps with the imputation recorded in the stored scaler called
// name and standardizes the result.
func (uc *OverlayUseCase) Scale(ctx context.Context, name string, eps []models.Episode) (*ScaledFeatures, error) {
	s, err := uc.loadScaler(ctx, name)
	if err != nil {
		return nil, err
	}
	matrix, err := s.Transform(s.Encode(eps))
	if err != nil {
		return nil, err
	}
	strategy, stats := s.Imputation()
	return &ScaledFeatures{Matrix: matrix, Strategy: strategy, Stats: stats}, nil
}

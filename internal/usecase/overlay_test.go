package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/internal/services/features"
)

func fittedScalers(t *testing.T, raw []models.RawBar) *memScalers {
	t.Helper()
	uc := NewPipelineUseCase(nil, nil, nil, 1, nil)
	eps, err := uc.EpisodesFromRaw(context.Background(), raw, 0.05)
	require.NoError(t, err)
	s := features.NewScaler(features.WithLabelNames(features.LabelNames(features.LabelDirection)))
	require.NoError(t, s.Fit(features.BuildFeatureMatrix(eps, features.ImputeSentinel, nil)))
	blob, err := json.Marshal(s)
	require.NoError(t, err)
	store := newMemScalers()
	require.NoError(t, store.Save(context.Background(), "default", blob))
	return store
}

func overlayParams() OverlayParams {
	return OverlayParams{
		Ticker:    "AAPL",
		Timeframe: drepo.TF1Day,
		Start:     time.Unix(0, 0),
		End:       time.Unix(1800000000, 0),
		Scaler:    "default",
	}
}

func TestOverlay_KeepsConfidentPredictions(t *testing.T) {
	raw := zigzag("AAPL", 4, 8)
	clf := &stubClassifier{rows: func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = []float64{0.4, 0.3, 0.3}
		}
		out[0] = []float64{0.05, 0.9, 0.05}
		return out
	}}
	uc := NewOverlayUseCase(
		&fakeBars{bars: map[string][]models.RawBar{"AAPL": raw}},
		NewPipelineUseCase(nil, nil, nil, 1, nil),
		fittedScalers(t, raw), clf, nil,
	)

	res, err := uc.Predict(context.Background(), overlayParams())
	require.NoError(t, err)
	assert.Equal(t, 0.05, res.Threshold)
	require.Greater(t, res.Episodes, 1)
	require.Len(t, res.Predictions, 1)
	assert.Equal(t, "down", res.Predictions[0].Label)
	assert.Equal(t, 1, res.Predictions[0].ClassIndex)
	assert.InDelta(t, 0.9, res.Predictions[0].Confidence, 1e-12)
}

func TestOverlay_MissingScaler(t *testing.T) {
	uc := NewOverlayUseCase(
		&fakeBars{bars: map[string][]models.RawBar{"AAPL": zigzag("AAPL", 4, 8)}},
		NewPipelineUseCase(nil, nil, nil, 1, nil),
		newMemScalers(), &stubClassifier{}, nil,
	)
	_, err := uc.Predict(context.Background(), overlayParams())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOverlay_ClassifierRowMismatch(t *testing.T) {
	raw := zigzag("AAPL", 4, 8)
	clf := &stubClassifier{rows: func(int) [][]float64 { return [][]float64{{1, 0, 0}} }}
	uc := NewOverlayUseCase(
		&fakeBars{bars: map[string][]models.RawBar{"AAPL": raw}},
		NewPipelineUseCase(nil, nil, nil, 1, nil),
		fittedScalers(t, raw), clf, nil,
	)
	_, err := uc.Predict(context.Background(), overlayParams())
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestOverlay_NoEpisodesIsEmpty(t *testing.T) {
	uc := NewOverlayUseCase(
		&fakeBars{bars: map[string][]models.RawBar{}},
		NewPipelineUseCase(nil, nil, nil, 1, nil),
		newMemScalers(), &stubClassifier{}, nil,
	)
	res, err := uc.Predict(context.Background(), overlayParams())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Episodes)
	assert.Empty(t, res.Predictions)
}

func TestOverlay_ConfiguredConfidenceFloor(t *testing.T) {
	raw := zigzag("AAPL", 4, 8)
	clf := &stubClassifier{rows: func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = []float64{0.5, 0.3, 0.2}
		}
		return out
	}}
	uc := NewOverlayUseCase(
		&fakeBars{bars: map[string][]models.RawBar{"AAPL": raw}},
		NewPipelineUseCase(nil, nil, nil, 1, nil),
		fittedScalers(t, raw), clf, nil,
	)

	res, err := uc.Predict(context.Background(), overlayParams())
	require.NoError(t, err)
	assert.Empty(t, res.Predictions)

	uc.SetMinConfidence(0.4)
	res, err = uc.Predict(context.Background(), overlayParams())
	require.NoError(t, err)
	assert.Len(t, res.Predictions, res.Episodes)

	p := overlayParams()
	p.MinConfidence = 0.6
	res, err = uc.Predict(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.Predictions)
}

func TestOverlay_ImputesWithTrainingStrategy(t *testing.T) {
	raw := zigzag("AAPL", 4, 8)
	eps, err := NewPipelineUseCase(nil, nil, nil, 1, nil).EpisodesFromRaw(context.Background(), raw, 0.05)
	require.NoError(t, err)
	require.NotEmpty(t, features.MissingValueReport(eps, nil))

	stats := features.ComputeColumnStats(eps)
	s := features.NewScaler(
		features.WithLabelNames(features.LabelNames(features.LabelDirection)),
		features.WithImputation(features.ImputeMean, stats),
	)
	trained, err := s.FitTransform(features.BuildFeatureMatrix(eps, features.ImputeMean, stats))
	require.NoError(t, err)
	blob, err := json.Marshal(s)
	require.NoError(t, err)
	store := newMemScalers()
	require.NoError(t, store.Save(context.Background(), "default", blob))

	clf := &stubClassifier{rows: func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = []float64{1, 0, 0}
		}
		return out
	}}
	uc := NewOverlayUseCase(&fakeBars{bars: map[string][]models.RawBar{"AAPL": raw}},
		NewPipelineUseCase(nil, nil, nil, 1, nil), store, clf, nil)

	_, err = uc.Predict(context.Background(), overlayParams())
	require.NoError(t, err)
	require.Len(t, clf.seen, len(trained))
	for i := range trained {
		assert.InDeltaSlice(t, trained[i], clf.seen[i], 1e-9, "row %d", i)
	}

	sentinel, err := s.Transform(features.BuildFeatureMatrix(eps, features.ImputeSentinel, nil))
	require.NoError(t, err)
	assert.NotEqual(t, sentinel, clf.seen)
}

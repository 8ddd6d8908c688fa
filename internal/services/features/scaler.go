package features

import (
	"encoding/json"
	"fmt"
	"math"

	"TrendLab/internal/domain/models"
	"TrendLab/pkg/logger"
)

// Scaler standardizes feature columns with the population mean and standard
// deviation of the batch it was fitted on. A fitted scaler is never refit at inference.
// It also carries the imputation used to build its training matrix so inference
// encodes missing values the same way.
type Scaler struct {
	means      []float64
	stds       []float64
	labelNames []string
	strategy   ImputeStrategy
	stats      *ColumnStats
	log        *logger.Logger
}

type ScalerOption func(*Scaler)

func WithScalerLogger(l *logger.Logger) ScalerOption {
	return func(s *Scaler) {
		if l != nil {
			s.log = l
		}
	}
}

func WithLabelNames(names []string) ScalerOption {
	return func(s *Scaler) { s.labelNames = append([]string(nil), names...) }
}

// WithImputation records how missing features were filled before fitting.
func WithImputation(strategy ImputeStrategy, stats *ColumnStats) ScalerOption {
	return func(s *Scaler) { s.strategy, s.stats = strategy, stats }
}

func NewScaler(opts ...ScalerOption) *Scaler {
	s := &Scaler{log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scaler) Fitted() bool { return len(s.means) > 0 }

func (s *Scaler) Width() int { return len(s.means) }

func (s *Scaler) Means() []float64 { return append([]float64(nil), s.means...) }

func (s *Scaler) Stds() []float64 { return append([]float64(nil), s.stds...) }

func (s *Scaler) LabelNames() []string { return append([]string(nil), s.labelNames...) }

// Imputation returns the recorded strategy and column stats. Scalers saved
// without one report the sentinel strategy.
func (s *Scaler) Imputation() (ImputeStrategy, *ColumnStats) {
	if s.strategy == "" {
		return ImputeSentinel, nil
	}
	return s.strategy, s.stats
}

// Encode builds the feature matrix of episodes with the recorded imputation.
func (s *Scaler) Encode(episodes []models.Episode) [][]float64 {
	strategy, stats := s.Imputation()
	return BuildFeatureMatrix(episodes, strategy, stats)
}

// Fit learns column means and standard deviations. A zero deviation is stored as 1.
func (s *Scaler) Fit(batch [][]float64) error {
	if len(batch) == 0 {
		return models.ErrEmptyBatch
	}
	width := len(batch[0])
	if width == 0 {
		return models.ErrEmptyBatch
	}
	for i, row := range batch {
		if len(row) != width {
			return &models.DimensionMismatchError{Expected: width, Got: len(row), Row: i}
		}
	}

	n := float64(len(batch))
	means := make([]float64, width)
	stds := make([]float64, width)
	for _, row := range batch {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, row := range batch {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	s.means, s.stds = means, stds
	s.log.Debug("scaler fitted", logger.Int("rows", len(batch)), logger.Int("columns", width))
	return nil
}

// Transform returns a standardized copy of batch. An empty batch is returned unchanged.
func (s *Scaler) Transform(batch [][]float64) ([][]float64, error) {
	if !s.Fitted() {
		return nil, models.ErrNotFitted
	}
	if len(batch) == 0 {
		s.log.Warn("scaler: transform called with empty batch")
		return batch, nil
	}
	out := make([][]float64, len(batch))
	for i, row := range batch {
		if len(row) != len(s.means) {
			return nil, &models.DimensionMismatchError{Expected: len(s.means), Got: len(row), Row: i}
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.means[j]) / s.stds[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits on batch and returns it standardized.
func (s *Scaler) FitTransform(batch [][]float64) ([][]float64, error) {
	if err := s.Fit(batch); err != nil {
		return nil, err
	}
	return s.Transform(batch)
}

type scalerJSON struct {
	Means       []float64      `json:"means"`
	Stds        []float64      `json:"stds"`
	LabelNames  []string       `json:"labelNames,omitempty"`
	Impute      ImputeStrategy `json:"impute,omitempty"`
	ColumnStats *ColumnStats   `json:"columnStats,omitempty"`
}

func (s *Scaler) MarshalJSON() ([]byte, error) {
	if !s.Fitted() {
		return nil, models.ErrNotFitted
	}
	return json.Marshal(scalerJSON{
		Means:       s.means,
		Stds:        s.stds,
		LabelNames:  s.labelNames,
		Impute:      s.strategy,
		ColumnStats: s.stats,
	})
}

func (s *Scaler) UnmarshalJSON(data []byte) error {
	var raw scalerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode scaler: %w", err)
	}
	if len(raw.Means) != len(raw.Stds) {
		return &models.DimensionMismatchError{Expected: len(raw.Means), Got: len(raw.Stds), Row: -1}
	}
	if len(raw.Means) == 0 {
		return fmt.Errorf("decode scaler: %w", models.ErrEmptyBatch)
	}
	for j, sd := range raw.Stds {
		if sd == 0 {
			raw.Stds[j] = 1
		}
	}
	if raw.Impute != "" {
		strategy, err := ParseImputeStrategy(string(raw.Impute))
		if err != nil {
			return fmt.Errorf("decode scaler: %w", err)
		}
		raw.Impute = strategy
	}
	s.means, s.stds, s.labelNames = raw.Means, raw.Stds, raw.LabelNames
	s.strategy, s.stats = raw.Impute, raw.ColumnStats
	if s.log == nil {
		s.log = logger.Nop()
	}
	return nil
}

// LoadScaler decodes a scaler previously produced by MarshalJSON.
func LoadScaler(data []byte, opts ...ScalerOption) (*Scaler, error) {
	s := NewScaler(opts...)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

package service

import "context"

// TrendClassifier scores scaled feature vectors. Each output row holds one
// probability per class, in the order of the label names the scaler was fitted with.
type TrendClassifier interface {
	Predict(ctx context.Context, matrix [][]float64) ([][]float64, error)
}

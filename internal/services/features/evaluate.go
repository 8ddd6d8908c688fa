package features

import (
	"fmt"
	"math/rand"
)

// ArgMax returns the index and value of the largest probability, or (-1, 0) for an empty row.
func ArgMax(probs []float64) (int, float64) {
	best, conf := -1, 0.0
	for i, p := range probs {
		if best == -1 || p > conf {
			best, conf = i, p
		}
	}
	return best, conf
}

// ConfusionMatrix counts predictions per (true, predicted) class pair.
// Indices outside [0,k) are ignored.
func ConfusionMatrix(trueIdx, predIdx []int, k int) ([][]int, error) {
	if len(trueIdx) != len(predIdx) {
		return nil, fmt.Errorf("confusion matrix: %d labels vs %d predictions", len(trueIdx), len(predIdx))
	}
	m := make([][]int, k)
	for i := range m {
		m[i] = make([]int, k)
	}
	for i := range trueIdx {
		t, p := trueIdx[i], predIdx[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			continue
		}
		m[t][p]++
	}
	return m, nil
}

// ClassMetric is the precision, recall and F1 of one class.
type ClassMetric struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassMetrics derives per-class metrics from a confusion matrix.
// Undefined ratios are reported as 0.
func ClassMetrics(confusion [][]int, labels []string) []ClassMetric {
	out := make([]ClassMetric, len(confusion))
	for c := range confusion {
		tp := confusion[c][c]
		predicted, actual := 0, 0
		for i := range confusion {
			predicted += confusion[i][c]
			actual += confusion[c][i]
		}
		m := ClassMetric{Support: actual}
		if c < len(labels) {
			m.Label = labels[c]
		}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			m.Recall = float64(tp) / float64(actual)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		out[c] = m
	}
	return out
}

// TrainTestSplit shuffles 0..n-1 deterministically for seed and cuts it at ratio.
func TrainTestSplit(n int, ratio float64, seed int64) (train, test []int) {
	if n <= 0 {
		return []int{}, []int{}
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	cut := int(float64(n) * ratio)
	return perm[:cut], perm[cut:]
}

package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
	"TrendLab/internal/domain/service"
	xhttp "TrendLab/pkg/http"
)

var _ service.TrendClassifier = (*HTTPClassifier)(nil)

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// HTTPClassifier calls an external inference service. The service receives
// scaled feature rows and answers one probability row per instance.
type HTTPClassifier struct {
	url    string
	client *xhttp.Client
}

// NewHTTPClassifier builds a classifier posting to baseURL + "/predict".
func NewHTTPClassifier(baseURL string, timeout time.Duration, maxRetries int) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewHTTPClassifierWithClient(baseURL,
		xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithRetry(maxRetries, 100*time.Millisecond)))
}

// NewHTTPClassifierWithClient uses a preconfigured client.
func NewHTTPClassifierWithClient(baseURL string, client *xhttp.Client) *HTTPClassifier {
	return &HTTPClassifier{
		url:    strings.TrimRight(baseURL, "/") + "/predict",
		client: client,
	}
}

// Predict returns the class probabilities for every row of matrix.
func (c *HTTPClassifier) Predict(ctx context.Context, matrix [][]float64) ([][]float64, error) {
	if len(matrix) == 0 {
		return [][]float64{}, nil
	}
	if c.url == "/predict" {
		return nil, fmt.Errorf("classifier url not configured")
	}

	var out predictResponse
	err := c.client.SendWithRetry(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    predictRequest{Instances: matrix},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("classifier predict: %w", err)
	}
	if len(out.Predictions) != len(matrix) {
		return nil, &models.DimensionMismatchError{Expected: len(matrix), Got: len(out.Predictions), Row: -1}
	}
	return out.Predictions, nil
}

package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
)

// zigzag returns legs alternating between +1.5% and -1.5% per bar, enough for
// the daily reversal threshold to confirm a swing at every turn.
func zigzag(ticker string, legs, perLeg int) []models.RawBar {
	out := make([]models.RawBar, 0, legs*perLeg+1)
	price := 100.0
	ts := int64(1700000000)
	add := func() {
		vol := 1000.0 + float64(len(out))
		out = append(out, models.RawBar{
			Ticker: ticker,
			Time:   models.RawTime(strconv.FormatInt(ts, 10)),
			Close:  price,
			Volume: &vol,
		})
		ts += 86400
	}
	add()
	for leg := 0; leg < legs; leg++ {
		step := 0.015
		if leg%2 == 1 {
			step = -0.015
		}
		for k := 0; k < perLeg; k++ {
			price *= 1 + step
			add()
		}
	}
	return out
}

type fakeBars struct {
	mu    sync.Mutex
	calls int
	bars  map[string][]models.RawBar
	errs  map[string]error
}

func (f *fakeBars) GetBars(_ context.Context, ticker string, _ drepo.Timeframe, _, _ time.Time, _ int) ([]models.RawBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[ticker]; err != nil {
		return nil, err
	}
	return f.bars[ticker], nil
}

func (f *fakeBars) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNews struct {
	calls int
}

func (f *fakeNews) GetNews(_ context.Context, tickers []string, limit int) ([]models.NewsArticle, error) {
	f.calls++
	return []models.NewsArticle{{ID: 1, Headline: "h", Symbols: tickers}}, nil
}

type memScalers struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemScalers() *memScalers { return &memScalers{blobs: map[string][]byte{}} }

func (m *memScalers) Save(_ context.Context, name string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), blob...)
	return nil
}

func (m *memScalers) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return nil, models.ErrNotFound
	}
	return b, nil
}

func (m *memScalers) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	return out, nil
}

func (m *memScalers) Close() error { return nil }

type stubClassifier struct {
	rows func(n int) [][]float64
	err  error
	seen [][]float64
}

func (s *stubClassifier) Predict(_ context.Context, matrix [][]float64) ([][]float64, error) {
	s.seen = matrix
	if s.err != nil {
		return nil, s.err
	}
	return s.rows(len(matrix)), nil
}

type memDataset struct {
	written map[string][]models.Episode
}

func (m *memDataset) WriteEpisodes(_ context.Context, path string, eps []models.Episode) error {
	if m.written == nil {
		m.written = map[string][]models.Episode{}
	}
	m.written[path] = eps
	return nil
}

func (m *memDataset) ReadEpisodes(_ context.Context, path string) ([]models.Episode, error) {
	eps, ok := m.written[path]
	if !ok {
		return nil, errors.New("no such dataset")
	}
	return eps, nil
}

type memEpisodePublisher struct {
	published int
}

func (p *memEpisodePublisher) PublishEpisodes(_ context.Context, eps []models.Episode) error {
	p.published += len(eps)
	return nil
}

func (p *memEpisodePublisher) Close() error { return nil }

type memEpisodeStore struct {
	saved []models.Episode
}

func (m *memEpisodeStore) Init(context.Context) error { return nil }

func (m *memEpisodeStore) SaveEpisodes(_ context.Context, eps []models.Episode) error {
	m.saved = append(m.saved, eps...)
	return nil
}

func (m *memEpisodeStore) ListEpisodes(_ context.Context, ticker string, from, to time.Time) ([]models.Episode, error) {
	var out []models.Episode
	for _, ep := range m.saved {
		if ep.Ticker == ticker && !ep.StartTime.Before(from) && !ep.StartTime.After(to) {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (m *memEpisodeStore) Close() error { return nil }

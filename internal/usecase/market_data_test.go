package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/pkg/cache"
)

func TestMarketData_CachesBars(t *testing.T) {
	src := &fakeBars{bars: map[string][]models.RawBar{"AAPL": zigzag("AAPL", 2, 3)}}
	uc := NewMarketDataUseCase(src, nil, cache.NewMemoryCache(), time.Minute)
	ctx := context.Background()
	from, to := time.Unix(0, 0), time.Unix(1000, 0)

	first, err := uc.GetBars(ctx, "aapl", drepo.TF1Day, from, to, 100)
	require.NoError(t, err)
	second, err := uc.GetBars(ctx, "AAPL", drepo.TF1Day, from, to, 100)
	require.NoError(t, err)

	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, first, second)

	_, err = uc.GetBars(ctx, "AAPL", drepo.TF1Hour, from, to, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount())
}

func TestMarketData_RejectsBadInput(t *testing.T) {
	uc := NewMarketDataUseCase(&fakeBars{}, nil, nil, 0)
	_, err := uc.GetBars(context.Background(), " ", drepo.TF1Day, time.Unix(0, 0), time.Unix(1, 0), 1)
	assert.Error(t, err)
	_, err = uc.GetBars(context.Background(), "AAPL", drepo.TF1Day, time.Unix(10, 0), time.Unix(1, 0), 1)
	assert.Error(t, err)
	_, err = uc.GetNews(context.Background(), []string{"AAPL"}, 5)
	assert.Error(t, err, "news source not configured")
}

func TestMarketData_NewsKeyIgnoresTickerOrder(t *testing.T) {
	news := &fakeNews{}
	uc := NewMarketDataUseCase(nil, news, cache.NewMemoryCache(), time.Minute)

	_, err := uc.GetNews(context.Background(), []string{"AAPL", "MSFT"}, 10)
	require.NoError(t, err)
	got, err := uc.GetNews(context.Background(), []string{"MSFT", "AAPL"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, news.calls)
	require.Len(t, got, 1)
}

package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/pkg/cache"
)

const DefaultCacheTTL = 5 * time.Minute

// MarketDataUseCase serves historical bars and news through a short-lived cache.
type MarketDataUseCase struct {
	bars  drepo.BarSource
	news  drepo.NewsSource
	cache cache.Service
	ttl   time.Duration
}

// NewMarketDataUseCase wires the sources to the cache. A nil cache disables caching.
func NewMarketDataUseCase(bars drepo.BarSource, news drepo.NewsSource, c cache.Service, ttl time.Duration) *MarketDataUseCase {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MarketDataUseCase{bars: bars, news: news, cache: c, ttl: ttl}
}

func (uc *MarketDataUseCase) GetBars(ctx context.Context, ticker string, tf drepo.Timeframe, start, end time.Time, limit int) ([]models.RawBar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if start.After(end) {
		return nil, fmt.Errorf("start must be <= end")
	}
	if uc.bars == nil {
		return nil, fmt.Errorf("bar source not configured")
	}
	key := cache.GenerateKeyWithParams("bars", ticker, tf, start.Unix(), end.Unix(), limit)
	return cache.GetOrLoad(ctx, uc.cache, key, uc.ttl, func(ctx context.Context) ([]models.RawBar, error) {
		bars, err := uc.bars.GetBars(ctx, ticker, tf, start, end, limit)
		if err != nil {
			return nil, fmt.Errorf("get bars %s: %w", ticker, err)
		}
		return bars, nil
	})
}

func (uc *MarketDataUseCase) GetNews(ctx context.Context, tickers []string, limit int) ([]models.NewsArticle, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("tickers required")
	}
	if uc.news == nil {
		return nil, fmt.Errorf("news source not configured")
	}
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	key := cache.GenerateKeyWithParams("news", cache.HashKey(strings.Join(sorted, ",")), limit)
	return cache.GetOrLoad(ctx, uc.cache, key, uc.ttl, func(ctx context.Context) ([]models.NewsArticle, error) {
		news, err := uc.news.GetNews(ctx, tickers, limit)
		if err != nil {
			return nil, fmt.Errorf("get news: %w", err)
		}
		return news, nil
	})
}

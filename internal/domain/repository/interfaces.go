package repository

import (
	"context"
	"time"

	"TrendLab/internal/domain/models"
)

// BarSource serves historical bars for one ticker.
type BarSource interface {
	GetBars(ctx context.Context, ticker string, tf Timeframe, start, end time.Time, limit int) ([]models.RawBar, error)
}

type NewsSource interface {
	GetNews(ctx context.Context, tickers []string, limit int) ([]models.NewsArticle, error)
}

// MarketStream delivers realtime bars.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawBar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type BarPublisher interface {
	Publish(ctx context.Context, bar *models.RawBar) error
	PublishBatch(ctx context.Context, bars []*models.RawBar) error
	Close() error
}

type EpisodePublisher interface {
	PublishEpisodes(ctx context.Context, episodes []models.Episode) error
	Close() error
}

type BarStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, bar *models.RawBar) error
	StoreBatch(ctx context.Context, bars []*models.RawBar) error
	Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.RawBar, error)
	Health(ctx context.Context) error
	Close() error
}

type EpisodeStore interface {
	Init(ctx context.Context) error
	SaveEpisodes(ctx context.Context, episodes []models.Episode) error
	ListEpisodes(ctx context.Context, ticker string, from, to time.Time) ([]models.Episode, error)
	Close() error
}

// ScalerStore is a named registry of fitted scaler parameters, stored as JSON blobs.
type ScalerStore interface {
	Save(ctx context.Context, name string, blob []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// DatasetWriter persists a training export.
type DatasetWriter interface {
	WriteEpisodes(ctx context.Context, path string, episodes []models.Episode) error
	ReadEpisodes(ctx context.Context, path string) ([]models.Episode, error)
}

type Metrics interface {
	RecordMessageSent(backend, ticker string)
	RecordError(kind string)
	RecordLastClose(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}

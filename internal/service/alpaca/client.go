package alpaca

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
	drepo "TrendLab/internal/domain/repository"
	"TrendLab/pkg/logger"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

var (
	_ drepo.BarSource  = (*Client)(nil)
	_ drepo.NewsSource = (*Client)(nil)
)

// API is the part of *marketdata.Client the adapter uses.
type API interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// Client serves historical bars and news from the Alpaca market data API.
type Client struct {
	api  API
	feed string
	log  *logger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithFeed selects the bar feed (iex or sip).
func WithFeed(feed string) Option {
	return func(c *Client) { c.feed = feed }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client backed by marketdata.NewClient.
func New(apiKey, apiSecret, dataURL string, opts ...Option) *Client {
	co := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		co.BaseURL = dataURL
	}
	return NewWithAPI(marketdata.NewClient(co), opts...)
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API, opts ...Option) *Client {
	c := &Client{api: api, feed: "iex", log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TimeFrameOf maps a Timeframe to the Alpaca bar width.
func TimeFrameOf(tf drepo.Timeframe) marketdata.TimeFrame {
	switch tf {
	case drepo.TF1Min:
		return marketdata.OneMin
	case drepo.TF5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min)
	case drepo.TF15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min)
	case drepo.TF30Min:
		return marketdata.NewTimeFrame(30, marketdata.Min)
	case drepo.TF1Hour:
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}

// GetBars fetches bars for one ticker in ascending time order.
func (c *Client) GetBars(ctx context.Context, ticker string, tf drepo.Timeframe, start, end time.Time, limit int) ([]models.RawBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	began := time.Now()
	bars, err := c.api.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  TimeFrameOf(tf),
		Start:      start,
		End:        end,
		TotalLimit: limit,
		Feed:       marketdata.Feed(c.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s %s: %w", ticker, tf, err)
	}

	out := make([]models.RawBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, ToRawBar(ticker, b))
	}
	c.log.Debug("alpaca bars fetched",
		logger.String("ticker", ticker),
		logger.String("timeframe", string(tf)),
		logger.Int("count", len(out)),
		logger.Duration("elapsed", time.Since(began)))
	return out, nil
}

// ToRawBar converts an Alpaca bar.
func ToRawBar(ticker string, b marketdata.Bar) models.RawBar {
	open, high, low := b.Open, b.High, b.Low
	vol := float64(b.Volume)
	return models.RawBar{
		Ticker: ticker,
		Time:   models.RawTimeOf(b.Timestamp),
		Open:   &open,
		High:   &high,
		Low:    &low,
		Close:  b.Close,
		Volume: &vol,
	}
}

// GetNews fetches the latest articles mentioning any of tickers, newest first.
func (c *Client) GetNews(ctx context.Context, tickers []string, limit int) ([]models.NewsArticle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			symbols = append(symbols, t)
		}
	}

	news, err := c.api.GetNews(marketdata.GetNewsRequest{
		Symbols:    symbols,
		TotalLimit: limit,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca news %s: %w", strings.Join(symbols, ","), err)
	}

	out := make([]models.NewsArticle, 0, len(news))
	for _, n := range news {
		out = append(out, models.NewsArticle{
			ID:        int64(n.ID),
			Headline:  n.Headline,
			Summary:   n.Summary,
			Author:    n.Author,
			URL:       n.URL,
			Symbols:   n.Symbols,
			CreatedAt: n.CreatedAt.UTC(),
			UpdatedAt: n.UpdatedAt.UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

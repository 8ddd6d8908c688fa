package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
	"TrendLab/internal/domain/repository"
	"TrendLab/internal/services/enrich"
	applogger "TrendLab/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// BarSchema returns the DDL for the bar table. Replacing on (ticker, ts)
// keeps the latest copy of a re-delivered bar.
func BarSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts          DateTime64(3, 'UTC'),
            ticker      LowCardinality(String),
            open        Float64,
            high        Float64,
            low         Float64,
            close       Float64,
            volume      Float64,
            source      LowCardinality(String),
            ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
        )
        ENGINE = ReplacingMergeTree(ingested_at)
        PARTITION BY toYYYYMM(ts)
        ORDER BY (ticker, ts)`, table)}
}

// ClickHouseBarStore implements BarStore for ClickHouse.
type ClickHouseBarStore struct {
	db     *sql.DB
	table  string
	source string
	l      *applogger.Logger
}

var _ repository.BarStore = (*ClickHouseBarStore)(nil)

// NewClickHouseBarStore creates ClickHouse bar storage.
func NewClickHouseBarStore(db *sql.DB, table, source string, l *applogger.Logger) (*ClickHouseBarStore, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseBarStore{db: db, table: table, source: source, l: l}, nil
}

func (s *ClickHouseBarStore) Init(ctx context.Context) error {
	for _, stmt := range BarSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init bars: %w", err)
		}
	}
	return nil
}

type barRow struct {
	ts                             time.Time
	ticker                         string
	open, high, low, close, volume float64
}

// toBarRow applies the same defaults as the enricher: missing OHLC falls back
// to close and missing volume to 0.
func toBarRow(b *models.RawBar) (barRow, error) {
	if b == nil || strings.TrimSpace(b.Ticker) == "" {
		return barRow{}, fmt.Errorf("bar without ticker")
	}
	ts, err := enrich.ParseTimestamp(b.Time)
	if err != nil {
		return barRow{}, err
	}
	return barRow{
		ts:     ts,
		ticker: strings.ToUpper(b.Ticker),
		open:   models.ValueOr(b.Open, b.Close),
		high:   models.ValueOr(b.High, b.Close),
		low:    models.ValueOr(b.Low, b.Close),
		close:  b.Close,
		volume: models.ValueOr(b.Volume, 0),
	}, nil
}

func (s *ClickHouseBarStore) Store(ctx context.Context, b *models.RawBar) error {
	return s.StoreBatch(ctx, []*models.RawBar{b})
}

func (s *ClickHouseBarStore) StoreBatch(ctx context.Context, bars []*models.RawBar) error {
	if len(bars) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		q, args, skipped := s.insertQuery(bars[start:end])
		if skipped > 0 {
			s.l.Warn("clickhouse bars skipped", applogger.Int("count", skipped))
		}
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseBarStore) insertQuery(bars []*models.RawBar) (string, []interface{}, int) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*8)
	skipped := 0
	for _, b := range bars {
		r, err := toBarRow(b)
		if err != nil {
			skipped++
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.ts, r.ticker, r.open, r.high, r.low, r.close, r.volume, s.source)
	}
	if len(values) == 0 {
		return "", nil, skipped
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, ticker, open, high, low, close, volume, source) VALUES %s",
		s.table, strings.Join(values, ","))
	return q, args, skipped
}

// Query returns up to limit of the most recent bars in [from, to], oldest first.
func (s *ClickHouseBarStore) Query(ctx context.Context, ticker string, from, to time.Time, limit int) ([]models.RawBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT ts, ticker, open, high, low, close, volume FROM (
            SELECT ts, ticker, open, high, low, close, volume
            FROM %s FINAL
            WHERE ticker = ? AND ts >= ? AND ts <= ?
            ORDER BY ts DESC
            LIMIT ?
        ) ORDER BY ts ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, strings.ToUpper(ticker), from, to, limit)
	if err != nil {
		s.l.Error("clickhouse bars query error", applogger.String("ticker", ticker), applogger.Error(err))
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.RawBar, 0, limit)
	for rows.Next() {
		var (
			ts                             time.Time
			tk                             string
			open, high, low, close, volume float64
		)
		if err := rows.Scan(&ts, &tk, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, models.RawBar{
			Ticker: tk, Time: models.RawTimeOf(ts),
			Open: &open, High: &high, Low: &low, Close: close, Volume: &volume,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse bars query ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)))
	return out, nil
}

func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseBarStore) Close() error {
	return nil
}

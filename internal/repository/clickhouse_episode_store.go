package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TrendLab/internal/domain/models"
	domrepo "TrendLab/internal/domain/repository"
	applogger "TrendLab/pkg/logger"
)

// EpisodeSchema returns the DDL for the episode table. The full episode is
// kept as JSON next to the columns used for filtering.
func EpisodeSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ticker        LowCardinality(String),
            episode_id    String,
            start_time    DateTime64(3, 'UTC'),
            end_time      DateTime64(3, 'UTC'),
            duration      UInt32,
            direction     LowCardinality(String),
            trend_quality LowCardinality(String),
            total_return  Float64,
            lr_fit_r2     Float64,
            payload       String,
            saved_at      DateTime64(3, 'UTC') DEFAULT now64(3)
        )
        ENGINE = ReplacingMergeTree(saved_at)
        ORDER BY (ticker, start_time, episode_id)`, table)}
}

// CHEpisodeStore implements EpisodeStore backed by ClickHouse.
type CHEpisodeStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.EpisodeStore = (*CHEpisodeStore)(nil)

func NewCHEpisodeStore(db *sql.DB, table string, l *applogger.Logger) (*CHEpisodeStore, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHEpisodeStore{db: db, table: table, l: l}, nil
}

func (s *CHEpisodeStore) Init(ctx context.Context) error {
	for _, stmt := range EpisodeSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init episodes: %w", err)
		}
	}
	return nil
}

func (s *CHEpisodeStore) SaveEpisodes(ctx context.Context, episodes []models.Episode) error {
	if len(episodes) == 0 {
		return nil
	}
	q, args, err := s.insertQuery(episodes)
	if err != nil {
		return err
	}
	start := time.Now()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse save_episodes error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(episodes)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert episodes: %w", err)
	}
	s.l.Info("clickhouse save_episodes ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(episodes)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHEpisodeStore) insertQuery(episodes []models.Episode) (string, []interface{}, error) {
	values := make([]string, 0, len(episodes))
	args := make([]interface{}, 0, len(episodes)*10)
	for i := range episodes {
		ep := &episodes[i]
		payload, err := json.Marshal(ep)
		if err != nil {
			return "", nil, fmt.Errorf("encode episode %s: %w", ep.EpisodeID, err)
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			ep.Ticker, ep.EpisodeID, ep.StartTime.UTC(), ep.EndTime.UTC(), uint32(ep.Duration),
			string(ep.Direction), string(ep.TrendQuality), ep.TotalReturn, ep.LRFitR2, string(payload),
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s (ticker, episode_id, start_time, end_time, duration, direction, trend_quality, total_return, lr_fit_r2, payload) VALUES %s`,
		s.table, strings.Join(values, ","))
	return q, args, nil
}

// ListEpisodes returns episodes that start within [from, to], oldest first.
func (s *CHEpisodeStore) ListEpisodes(ctx context.Context, ticker string, from, to time.Time) ([]models.Episode, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT payload
        FROM %s FINAL
        WHERE ticker = ? AND start_time >= ? AND start_time <= ?
        ORDER BY start_time ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, strings.ToUpper(ticker), from, to)
	if err != nil {
		s.l.Error("clickhouse list_episodes query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	out := make([]models.Episode, 0, 64)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			s.l.Error("clickhouse list_episodes scan error",
				applogger.String("table", s.table),
				applogger.String("ticker", ticker),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		var ep models.Episode
		if err := json.Unmarshal([]byte(payload), &ep); err != nil {
			return nil, fmt.Errorf("decode episode: %w", err)
		}
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse list_episodes rows error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse list_episodes ok",
		applogger.String("table", s.table),
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHEpisodeStore) Close() error { return nil }

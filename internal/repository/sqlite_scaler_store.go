package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"TrendLab/internal/domain/models"
	domrepo "TrendLab/internal/domain/repository"

	_ "modernc.org/sqlite"
)

var _ domrepo.ScalerStore = (*SQLiteScalerStore)(nil)

const scalerSchema = `
CREATE TABLE IF NOT EXISTS scalers (
    name       TEXT PRIMARY KEY,
    params     BLOB NOT NULL,
    updated_at INTEGER NOT NULL
)`

// SQLiteScalerStore keeps fitted scaler parameters in a local SQLite file.
type SQLiteScalerStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteScalerStore opens (or creates) the database at path and ensures the schema.
func NewSQLiteScalerStore(ctx context.Context, path string) (*SQLiteScalerStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, scalerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init scalers: %w", err)
	}
	return &SQLiteScalerStore{db: db, now: time.Now}, nil
}

func (s *SQLiteScalerStore) Save(ctx context.Context, name string, blob []byte) error {
	const q = `
        INSERT INTO scalers (name, params, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET params = excluded.params, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, name, blob, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("save scaler %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteScalerStore) Load(ctx context.Context, name string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT params FROM scalers WHERE name = ?`, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scaler %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load scaler %s: %w", name, err)
	}
	return blob, nil
}

// List returns scaler names, most recently updated first.
func (s *SQLiteScalerStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM scalers ORDER BY updated_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list scalers: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *SQLiteScalerStore) Close() error {
	return s.db.Close()
}

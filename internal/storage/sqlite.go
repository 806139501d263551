package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/config"
	_ "modernc.org/sqlite"
)

// SQLite is for inserting data to a local sqlite file.
type SQLite struct {
	DB  *sql.DB
	Cfg *config.SQLite
}

// InitSQLite opens the sqlite file, creating it and its directory if needed.
func InitSQLite(cfg *config.SQLite) (*SQLite, error) {
	if dir := filepath.Dir(cfg.FilePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", cfg.FilePath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLite{DB: db, Cfg: cfg}, nil
}

// Prepare creates the quote table if it does not exist.
func (s *SQLite) Prepare(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS quote (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  code TEXT NOT NULL,
  bid_lot TEXT NOT NULL,
  bid_price TEXT NOT NULL,
  ask_price TEXT NOT NULL,
  ask_lot TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quote_code_ts ON quote(code, timestamp);
`)
	return err
}

// CommitQuotes inserts the quotes in one transaction.
func (s *SQLite) CommitQuotes(ctx context.Context, data []Quote) error {
	if len(data) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quote(code, bid_lot, bid_price, ask_price, ask_lot, timestamp, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	createdAt := time.Now().UnixMilli()
	for _, q := range data {
		if _, err = stmt.ExecContext(ctx, q.Code, q.BidLot, q.BidPrice, q.AskPrice, q.AskLot, q.Timestamp.Format(QuoteTimestamp), createdAt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// countQuotes returns how many rows are stored for code.
func (s *SQLite) countQuotes(ctx context.Context, code string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM quote WHERE code = ?`, code).Scan(&n)
	return n, err
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

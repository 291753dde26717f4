// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrStoreClosed is returned when the ledger is used after Close.
var ErrStoreClosed = errors.New("usage store closed")

const usageSchema = `
CREATE TABLE IF NOT EXISTS usage (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd      REAL NOT NULL,
	duration_ms   INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_created ON usage(created_at);
CREATE INDEX IF NOT EXISTS idx_usage_session ON usage(session_id);
`

// =============================================================================
// TYPES
// =============================================================================

// UsageRecord is one successful API call.
type UsageRecord struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"session_id"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CostUSD      float64       `json:"cost_usd"`
	Duration     time.Duration `json:"duration"`
	Timestamp    time.Time     `json:"timestamp"`
}

// ModelTotal aggregates usage for one model.
type ModelTotal struct {
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// SessionSummary aggregates usage for one session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Start        time.Time `json:"start"`
	Calls        int       `json:"calls"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// =============================================================================
// USAGE STORE
// =============================================================================

// UsageStore persists usage records in SQLite.
type UsageStore struct {
	db *sql.DB
}

// OpenUsageStore opens (or creates) the ledger at path.
func OpenUsageStore(path string) (*UsageStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(usageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &UsageStore{db: db}, nil
}

// Close releases the database.
func (s *UsageStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record inserts one usage row, filling in ID and Timestamp when unset.
func (s *UsageStore) Record(ctx context.Context, rec UsageRecord) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage (id, session_id, model, input_tokens, output_tokens, cost_usd, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Model, rec.InputTokens, rec.OutputTokens,
		rec.CostUSD, rec.Duration.Milliseconds(), rec.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Totals returns per-model totals for calls at or after since, most
// expensive first.
func (s *UsageStore) Totals(ctx context.Context, since time.Time) ([]ModelTotal, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT model, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost_usd)
		 FROM usage WHERE created_at >= ?
		 GROUP BY model ORDER BY SUM(cost_usd) DESC, model`,
		from)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	var totals []ModelTotal
	for rows.Next() {
		var t ModelTotal
		if err := rows.Scan(&t.Model, &t.Calls, &t.InputTokens, &t.OutputTokens, &t.CostUSD); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// RecentSessions returns up to limit sessions, newest first.
func (s *UsageStore) RecentSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, MIN(created_at), COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost_usd)
		 FROM usage GROUP BY session_id
		 ORDER BY MIN(created_at) DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			sum   SessionSummary
			start int64
		)
		if err := rows.Scan(&sum.SessionID, &start, &sum.Calls, &sum.InputTokens, &sum.OutputTokens, &sum.CostUSD); err != nil {
			return nil, err
		}
		sum.Start = time.Unix(0, start)
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-hal/models"
)

// RecordFetchAttempt replaces the ledger entry for (date, category).
func (s *SQLiteStore) RecordFetchAttempt(ctx context.Context, entry models.FetchLogEntry) error {
	return recordFetchAttempt(ctx, s.db, entry)
}

func recordFetchAttempt(ctx context.Context, q dbtx, entry models.FetchLogEntry) error {
	const query = `
		INSERT OR REPLACE INTO fetch_log
		(date, category_slug, status, row_count, error_message, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		entry.Date,
		entry.CategorySlug,
		string(entry.Status),
		entry.RowCount,
		nullString(entry.ErrorMessage),
		formatTime(entry.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("record fetch attempt: %w", err)
	}
	return nil
}

// IsComplete reports whether the ledger holds an ok or empty entry.
func (s *SQLiteStore) IsComplete(ctx context.Context, date, categorySlug string) (bool, error) {
	entry, err := s.FetchLogEntry(ctx, date, categorySlug)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Status.Complete(), nil
}

// FetchLogEntry returns the ledger entry for (date, category).
func (s *SQLiteStore) FetchLogEntry(ctx context.Context, date, categorySlug string) (*models.FetchLogEntry, error) {
	const query = `
		SELECT date, category_slug, status, row_count, error_message, fetched_at
		FROM fetch_log
		WHERE date = ? AND category_slug = ?
	`
	var (
		entry     models.FetchLogEntry
		status    string
		errMsg    sql.NullString
		fetchedAt string
	)
	err := s.db.QueryRowContext(ctx, query, date, categorySlug).Scan(
		&entry.Date,
		&entry.CategorySlug,
		&status,
		&entry.RowCount,
		&errMsg,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fetch log: %w", err)
	}
	entry.Status = models.FetchStatus(status)
	entry.ErrorMessage = errMsg.String
	entry.FetchedAt = parseTime(fetchedAt)
	return &entry, nil
}

// CountFetchLog returns the number of ledger rows.
func (s *SQLiteStore) CountFetchLog(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetch_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count fetch log: %w", err)
	}
	return n, nil
}

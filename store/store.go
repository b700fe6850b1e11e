// Package store persists price records and the fetch ledger in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Storage modes.
const (
	ModeFlat    = "flat"
	ModeCatalog = "catalog"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// CategoryIDs maps category slugs to catalog category ids.
var CategoryIDs = map[string]int64{
	"fruit":     1,
	"vegetable": 1,
	"imported":  1,
	"fish":      2,
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type productKey struct {
	categoryID int64
	name       string
	unit       string
}

// SQLiteStore is the single-writer ingestion store.
type SQLiteStore struct {
	db       *sql.DB
	mode     string
	products *lru.Cache[productKey, int64]
}

type options struct {
	mode      string
	cacheSize int
}

// Option customises Open behaviour.
type Option func(*options)

// WithMode selects the price table written by UpsertPrice and CommitItem.
func WithMode(mode string) Option { return func(o *options) { o.mode = mode } }

// WithProductCacheSize bounds the in-memory product id cache. Default: 4096.
func WithProductCacheSize(n int) Option { return func(o *options) { o.cacheSize = n } }

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	o := options{mode: ModeFlat, cacheSize: 4096}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mode != ModeFlat && o.mode != ModeCatalog {
		return nil, fmt.Errorf("unknown storage mode %q", o.mode)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = 4096
	}
	// the path is spliced into a file: URI ahead of the pragma query
	if strings.ContainsAny(path, "?#") {
		return nil, fmt.Errorf("database path %q must not contain '?' or '#'", path)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	// Apply PRAGMA's per-connection via DSN so the pool always has them.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	cache, err := lru.New[productKey, int64](o.cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("product cache: %w", err)
	}

	return &SQLiteStore{db: db, mode: o.mode, products: cache}, nil
}

// Mode returns the storage mode the store writes.
func (s *SQLiteStore) Mode() string {
	return s.mode
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

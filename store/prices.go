package store

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-hal/models"
)

// UpsertPrice stores rec unless an identical (date, category, product, unit,
// min, max) row already exists. It reports whether a row was inserted.
// In catalog mode the product is resolved through GetOrCreateProduct.
func (s *SQLiteStore) UpsertPrice(ctx context.Context, rec *models.PriceRecord) (bool, error) {
	inserted, _, err := s.upsert(ctx, s.db, rec, nil)
	return inserted, err
}

// CommitItem stores all records of one work item together with its ledger
// entry in a single transaction.
func (s *SQLiteStore) CommitItem(ctx context.Context, records []*models.PriceRecord, entry models.FetchLogEntry) (models.CommitResult, error) {
	var result models.CommitResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	pending := make(map[productKey]int64)
	for _, rec := range records {
		inserted, created, err := s.upsert(ctx, tx, rec, pending)
		if err != nil {
			return models.CommitResult{}, err
		}
		if inserted {
			result.Inserted++
		}
		if created {
			result.NewProducts++
		}
	}

	if err := recordFetchAttempt(ctx, tx, entry); err != nil {
		return models.CommitResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.CommitResult{}, fmt.Errorf("commit tx: %w", err)
	}

	// ids minted inside the transaction only become visible once it is durable
	for key, id := range pending {
		s.products.Add(key, id)
	}
	return result, nil
}

func (s *SQLiteStore) upsert(ctx context.Context, q dbtx, rec *models.PriceRecord, pending map[productKey]int64) (inserted, created bool, err error) {
	if rec == nil {
		return false, false, fmt.Errorf("upsert price: nil record")
	}
	if s.mode == ModeCatalog {
		return s.upsertCatalogPrice(ctx, q, rec, pending)
	}
	inserted, err = upsertFlatPrice(ctx, q, rec)
	return inserted, false, err
}

func upsertFlatPrice(ctx context.Context, q dbtx, rec *models.PriceRecord) (bool, error) {
	const query = `
		INSERT OR IGNORE INTO prices
		(date, category_code, category_slug, product_name, product_category, unit,
		 min_price, max_price, source_date_text, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := q.ExecContext(ctx, query,
		rec.Date,
		rec.CategoryCode,
		rec.CategorySlug,
		rec.ProductName,
		nullString(rec.CategoryText),
		rec.Unit,
		nullFloat(rec.MinPrice),
		nullFloat(rec.MaxPrice),
		nullString(rec.SourceDate),
		formatTime(rec.FetchedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert price: %w", err)
	}
	return n == 1, nil
}

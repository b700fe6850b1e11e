package store

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-scrape-hal/models"
)

// GetOrCreateProduct returns the id of the (category, name, unit) product,
// creating it on first sighting. created reports whether a row was added.
func (s *SQLiteStore) GetOrCreateProduct(ctx context.Context, categoryID int64, name, unit string) (id int64, created bool, err error) {
	key := productKey{categoryID: categoryID, name: name, unit: unit}
	id, created, err = s.productID(ctx, s.db, key, nil)
	if err != nil {
		return 0, false, err
	}
	s.products.Add(key, id)
	return id, created, nil
}

func (s *SQLiteStore) productID(ctx context.Context, q dbtx, key productKey, pending map[productKey]int64) (int64, bool, error) {
	if id, ok := pending[key]; ok {
		return id, false, nil
	}
	if id, ok := s.products.Get(key); ok {
		return id, false, nil
	}

	const insert = `
		INSERT INTO products (category_id, name, unit) VALUES (?, ?, ?)
		ON CONFLICT (category_id, name, unit) DO NOTHING
	`
	res, err := q.ExecContext(ctx, insert, key.categoryID, key.name, key.unit)
	if err != nil {
		return 0, false, fmt.Errorf("insert product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("insert product: %w", err)
	}

	const lookup = `SELECT id FROM products WHERE category_id = ? AND name = ? AND unit = ?`
	var id int64
	if err := q.QueryRowContext(ctx, lookup, key.categoryID, key.name, key.unit).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("lookup product: %w", err)
	}
	if pending != nil {
		pending[key] = id
	}
	return id, n == 1, nil
}

func (s *SQLiteStore) upsertCatalogPrice(ctx context.Context, q dbtx, rec *models.PriceRecord, pending map[productKey]int64) (inserted, created bool, err error) {
	categoryID, ok := CategoryIDs[rec.CategorySlug]
	if !ok {
		return false, false, fmt.Errorf("category %q has no catalog id", rec.CategorySlug)
	}

	key := productKey{categoryID: categoryID, name: rec.ProductName, unit: rec.Unit}
	productID, created, err := s.productID(ctx, q, key, pending)
	if err != nil {
		return false, false, err
	}

	const query = `
		INSERT OR IGNORE INTO product_prices (product_id, date, min_price, max_price, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := q.ExecContext(ctx, query,
		productID,
		rec.Date,
		nullFloat(rec.MinPrice),
		nullFloat(rec.MaxPrice),
		formatTime(rec.FetchedAt),
	)
	if err != nil {
		return false, created, fmt.Errorf("insert product price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, created, fmt.Errorf("insert product price: %w", err)
	}
	return n == 1, created, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
)

// PriceQuery selects stored records by inclusive ISO date range and category.
// An empty CategorySlug matches every category.
type PriceQuery struct {
	From         string
	To           string
	CategorySlug string
}

func (s *SQLiteStore) priceTable() string {
	if s.mode == ModeCatalog {
		return "product_prices"
	}
	return "prices"
}

// MaxIngestedDate returns the latest stored price date; ok is false for an
// empty store.
func (s *SQLiteStore) MaxIngestedDate(ctx context.Context) (date time.Time, ok bool, err error) {
	query := `SELECT MAX(date) FROM ` + s.priceTable()
	var latest sql.NullString
	if err := s.db.QueryRowContext(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("max date: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, false, nil
	}
	date, err = time.Parse(models.DateLayout, latest.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("max date %q: %w", latest.String, err)
	}
	return date, true, nil
}

// Stats summarizes the stored price series.
func (s *SQLiteStore) Stats(ctx context.Context) (models.StoreStats, error) {
	query := `SELECT COALESCE(MAX(date), ''), COUNT(DISTINCT date), COUNT(*) FROM ` + s.priceTable()
	var st models.StoreStats
	if err := s.db.QueryRowContext(ctx, query).Scan(&st.MaxDate, &st.DistinctDays, &st.TotalRows); err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}

// QueryPrices returns stored records ordered by date then product name.
// In catalog mode the category slug is not stored; records carry the
// catalog category name and id instead.
func (s *SQLiteStore) QueryPrices(ctx context.Context, pq PriceQuery) ([]*models.PriceRecord, error) {
	if s.mode == ModeCatalog {
		return s.queryCatalogPrices(ctx, pq)
	}

	query := `
		SELECT date, category_code, category_slug, product_name, product_category, unit,
		       min_price, max_price, source_date_text, fetched_at
		FROM prices
		WHERE date BETWEEN ? AND ?
		  AND (? = '' OR category_slug = ?)
		ORDER BY date, product_name, id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.From, pq.To, pq.CategorySlug, pq.CategorySlug)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []*models.PriceRecord
	for rows.Next() {
		var (
			rec        models.PriceRecord
			prodCat    sql.NullString
			sourceDate sql.NullString
			minPrice   sql.NullFloat64
			maxPrice   sql.NullFloat64
			fetchedAt  string
		)
		if err := rows.Scan(
			&rec.Date,
			&rec.CategoryCode,
			&rec.CategorySlug,
			&rec.ProductName,
			&prodCat,
			&rec.Unit,
			&minPrice,
			&maxPrice,
			&sourceDate,
			&fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		rec.CategoryText = prodCat.String
		rec.SourceDate = sourceDate.String
		rec.MinPrice = floatPtr(minPrice)
		rec.MaxPrice = floatPtr(maxPrice)
		rec.FetchedAt = parseTime(fetchedAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) queryCatalogPrices(ctx context.Context, pq PriceQuery) ([]*models.PriceRecord, error) {
	var categoryID int64
	if pq.CategorySlug != "" {
		id, ok := CategoryIDs[pq.CategorySlug]
		if !ok {
			return nil, fmt.Errorf("category %q has no catalog id", pq.CategorySlug)
		}
		categoryID = id
	}

	const query = `
		SELECT pp.date, c.id, c.name, p.name, p.unit, pp.min_price, pp.max_price, pp.fetched_at
		FROM product_prices pp
		JOIN products p ON p.id = pp.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE pp.date BETWEEN ? AND ?
		  AND (? = 0 OR c.id = ?)
		ORDER BY pp.date, p.name, pp.id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.From, pq.To, categoryID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query product prices: %w", err)
	}
	defer rows.Close()

	var out []*models.PriceRecord
	for rows.Next() {
		var (
			rec       models.PriceRecord
			catID     int64
			minPrice  sql.NullFloat64
			maxPrice  sql.NullFloat64
			fetchedAt string
		)
		if err := rows.Scan(&rec.Date, &catID, &rec.CategoryText, &rec.ProductName, &rec.Unit, &minPrice, &maxPrice, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan product price: %w", err)
		}
		rec.CategoryCode = strconv.FormatInt(catID, 10)
		rec.MinPrice = floatPtr(minPrice)
		rec.MaxPrice = floatPtr(maxPrice)
		rec.FetchedAt = parseTime(fetchedAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product prices: %w", err)
	}
	return out, nil
}

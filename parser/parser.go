// Package parser turns upstream listing pages into normalized price records.
package parser

import (
	"errors"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
)

// Row anomalies. Rows carrying them are dropped, never stored.
var (
	ErrMissingName = errors.New("row missing product name")
	ErrMissingUnit = errors.New("row missing unit")
)

// ValidateRow ensures the scraper captured the required cells.
func ValidateRow(row models.RawRow) error {
	if strings.TrimSpace(row.ProductName) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(row.Unit) == "" {
		return ErrMissingUnit
	}
	return nil
}

// NormalizeRow builds the storable record for a row fetched for item.
func NormalizeRow(item models.WorkItem, row models.RawRow, fetchedAt time.Time) (*models.PriceRecord, error) {
	if err := ValidateRow(row); err != nil {
		return nil, err
	}
	return &models.PriceRecord{
		Date:         item.ISODate(),
		CategoryCode: item.Category.Code,
		CategorySlug: item.Category.Slug,
		ProductName:  strings.TrimSpace(row.ProductName),
		CategoryText: strings.TrimSpace(row.CategoryText),
		Unit:         strings.TrimSpace(row.Unit),
		MinPrice:     ParsePrice(row.MinPrice),
		MaxPrice:     ParsePrice(row.MaxPrice),
		SourceDate:   strings.TrimSpace(row.SourceDate),
		FetchedAt:    fetchedAt.UTC().Truncate(time.Second),
	}, nil
}

// NormalizeRows converts rows to records, returning the dropped rows' errors
// keyed by anomaly label.
func NormalizeRows(item models.WorkItem, rows []models.RawRow, fetchedAt time.Time) ([]*models.PriceRecord, map[string]int) {
	records := make([]*models.PriceRecord, 0, len(rows))
	var dropped map[string]int
	for _, row := range rows {
		rec, err := NormalizeRow(item, row, fetchedAt)
		if err != nil {
			if dropped == nil {
				dropped = make(map[string]int)
			}
			dropped[anomalyLabel(err)]++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

func anomalyLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingName):
		return "missing_name"
	case errors.Is(err, ErrMissingUnit):
		return "missing_unit"
	default:
		return "invalid_row"
	}
}

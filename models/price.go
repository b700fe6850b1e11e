// Package models defines data structures for the price synchronizer.
package models

import "time"

// DateLayout is the ISO calendar date format used for storage.
const DateLayout = "2006-01-02"

// UpstreamDateLayout is the day.month.year form the upstream form expects.
const UpstreamDateLayout = "02.01.2006"

// RawRow holds the six cells of one listing row as scraped.
type RawRow struct {
	ProductName  string
	CategoryText string
	Unit         string
	MinPrice     string
	MaxPrice     string
	SourceDate   string
}

// PriceRecord is the normalized, storable form of a listing row.
type PriceRecord struct {
	Date         string    `csv:"date" json:"date"`
	CategoryCode string    `csv:"category_code" json:"category_code"`
	CategorySlug string    `csv:"category_slug" json:"category_slug"`
	ProductName  string    `csv:"product_name" json:"product_name"`
	CategoryText string    `csv:"product_category" json:"product_category"`
	Unit         string    `csv:"unit" json:"unit"`
	MinPrice     *float64  `csv:"min_price" json:"min_price"`
	MaxPrice     *float64  `csv:"max_price" json:"max_price"`
	SourceDate   string    `csv:"source_date" json:"source_date"`
	FetchedAt    time.Time `csv:"fetched_at" json:"fetched_at"`
}

// FetchStatus is the outcome recorded in the fetch ledger.
type FetchStatus string

// Ledger statuses persisted in fetch_log.status.
const (
	StatusOK    FetchStatus = "ok"
	StatusEmpty FetchStatus = "empty"
	StatusError FetchStatus = "error"
)

// Complete reports whether the status marks a work item as durably done.
func (s FetchStatus) Complete() bool {
	return s == StatusOK || s == StatusEmpty
}

// FetchLogEntry is the ledger row for the last attempt of a work item.
type FetchLogEntry struct {
	Date         string
	CategorySlug string
	Status       FetchStatus
	RowCount     int
	ErrorMessage string
	FetchedAt    time.Time
}

// CommitResult reports what a single work item commit changed.
type CommitResult struct {
	Inserted    int
	NewProducts int
}

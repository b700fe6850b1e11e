package models

import "time"

// RunSummary holds the aggregate counters of one sync run.
type RunSummary struct {
	StartTime time.Time
	EndTime   time.Time

	Attempted    int
	Skipped      int
	Retries      int
	RowsSeen     int
	RowsInserted int
	RowsDropped  int
	NewProducts  int
	OKItems      int
	EmptyItems   int
	ErrorItems   int

	FetchedDays int
	EmptyDays   int
	ErrorDays   int

	FailedItems  []string
	ErrorsByKind map[string]int
	Interrupted  bool
}

// HasErrors reports whether any work item ended in a terminal error.
func (r *RunSummary) HasErrors() bool {
	return r != nil && r.ErrorItems > 0
}

// StoreStats describes the stored price series after a run.
type StoreStats struct {
	MaxDate      string
	DistinctDays int
	TotalRows    int
}

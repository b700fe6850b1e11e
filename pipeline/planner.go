package pipeline

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
)

// Ledger answers whether a work item has already been durably completed.
type Ledger interface {
	IsComplete(ctx context.Context, date, categorySlug string) (bool, error)
}

// Plan is the ordered set of work items for a date range and categories.
type Plan struct {
	start      time.Time
	end        time.Time
	categories []models.Category
}

// NewPlan validates the range and category tokens. Dates are truncated to
// calendar days; an unknown token fails the whole plan.
func NewPlan(start, end time.Time, tokens []string) (*Plan, error) {
	start = civilDay(start)
	end = civilDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			end.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	categories, err := parser.NormalizeCategories(tokens)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	return &Plan{start: start, end: end, categories: categories}, nil
}

// Start returns the first planned day.
func (p *Plan) Start() time.Time { return p.start }

// End returns the last planned day.
func (p *Plan) End() time.Time { return p.end }

// Categories returns the deduplicated categories in requested order.
func (p *Plan) Categories() []models.Category {
	out := make([]models.Category, len(p.categories))
	copy(out, p.categories)
	return out
}

// Days returns the number of calendar days covered by the plan.
func (p *Plan) Days() int {
	return int(p.end.Sub(p.start).Hours()/24) + 1
}

// Len returns the number of work items in the plan.
func (p *Plan) Len() int {
	return p.Days() * len(p.categories)
}

// Items yields every work item, dates ascending and categories in
// requested order within a day.
func (p *Plan) Items() iter.Seq[models.WorkItem] {
	return func(yield func(models.WorkItem) bool) {
		for day := p.start; !day.After(p.end); day = day.AddDate(0, 0, 1) {
			for _, cat := range p.categories {
				if !yield(models.WorkItem{Date: day, Category: cat}) {
					return
				}
			}
		}
	}
}

// Pending yields the items the ledger does not mark complete. Each omitted
// item is reported through onSkip. A ledger failure is yielded once and
// ends the sequence.
func (p *Plan) Pending(ctx context.Context, ledger Ledger, onSkip func(models.WorkItem)) iter.Seq2[models.WorkItem, error] {
	return func(yield func(models.WorkItem, error) bool) {
		for item := range p.Items() {
			done, err := ledger.IsComplete(ctx, item.ISODate(), item.Category.Slug)
			if err != nil {
				yield(item, fmt.Errorf("check ledger for %s: %w", item, err))
				return
			}
			if done {
				if onSkip != nil {
					onSkip(item)
				}
				continue
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

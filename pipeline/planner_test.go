package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPlanItemsOrder(t *testing.T) {
	plan, err := NewPlan(day("2024-01-01"), day("2024-01-03"), []string{"fruit", "fish"})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}

	want := []string{
		"2024-01-01/fruit", "2024-01-01/fish",
		"2024-01-02/fruit", "2024-01-02/fish",
		"2024-01-03/fruit", "2024-01-03/fish",
	}
	var got []string
	for item := range plan.Items() {
		got = append(got, item.String())
	}
	if len(got) != len(want) {
		t.Fatalf("items=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d=%s, want %s", i, got[i], want[i])
		}
	}
	if plan.Len() != 6 || plan.Days() != 3 {
		t.Fatalf("len=%d days=%d", plan.Len(), plan.Days())
	}
}

func TestPlanSingleDay(t *testing.T) {
	plan, err := NewPlan(day("2024-02-29"), day("2024-02-29"), []string{"2"})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	var items []models.WorkItem
	for item := range plan.Items() {
		items = append(items, item)
	}
	if len(items) != 1 || items[0].Category.Slug != "vegetable" || items[0].Category.Code != "2" {
		t.Fatalf("items=%v", items)
	}
	if items[0].UpstreamDate() != "29.02.2024" {
		t.Fatalf("upstream date=%s", items[0].UpstreamDate())
	}
}

func TestNewPlanRejectsBadInput(t *testing.T) {
	if _, err := NewPlan(day("2024-01-03"), day("2024-01-01"), []string{"fruit"}); err == nil {
		t.Fatalf("expected error for end before start")
	}
	_, err := NewPlan(day("2024-01-01"), day("2024-01-03"), []string{"fruit", "poultry"})
	if !errors.Is(err, parser.ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
}

func TestNewPlanDeduplicatesCategories(t *testing.T) {
	plan, err := NewPlan(day("2024-01-01"), day("2024-01-01"), []string{"balik", "fish", "4", "sebze"})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	cats := plan.Categories()
	if len(cats) != 2 || cats[0].Slug != "fish" || cats[1].Slug != "vegetable" {
		t.Fatalf("categories=%v", cats)
	}
}

type mapLedger struct {
	complete map[string]bool
	err      error
}

func (l *mapLedger) IsComplete(ctx context.Context, date, slug string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.complete[date+"/"+slug], nil
}

func TestPlanPendingSkipsCompleteItems(t *testing.T) {
	plan, err := NewPlan(day("2024-01-01"), day("2024-01-02"), []string{"fruit", "fish"})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	ledger := &mapLedger{complete: map[string]bool{
		"2024-01-01/fruit": true,
		"2024-01-02/fish":  true,
	}}

	var skipped, pending []string
	for item, err := range plan.Pending(context.Background(), ledger, func(item models.WorkItem) {
		skipped = append(skipped, item.String())
	}) {
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		pending = append(pending, item.String())
	}

	if len(pending) != 2 || pending[0] != "2024-01-01/fish" || pending[1] != "2024-01-02/fruit" {
		t.Fatalf("pending=%v", pending)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped=%v", skipped)
	}
}

func TestPlanPendingStopsOnLedgerError(t *testing.T) {
	plan, err := NewPlan(day("2024-01-01"), day("2024-01-02"), []string{"fruit"})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}
	boom := errors.New("disk I/O error")

	var errs int
	for _, err := range plan.Pending(context.Background(), &mapLedger{err: boom}, nil) {
		if !errors.Is(err, boom) {
			t.Fatalf("err=%v, want wrapped ledger error", err)
		}
		errs++
	}
	if errs != 1 {
		t.Fatalf("yielded %d errors, want 1", errs)
	}
}

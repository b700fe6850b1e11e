package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
)

type scriptedFetcher struct {
	outcomes []models.FetchOutcome
	calls    int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, item models.WorkItem) models.FetchOutcome {
	out := f.outcomes[len(f.outcomes)-1]
	if f.calls < len(f.outcomes) {
		out = f.outcomes[f.calls]
	}
	f.calls++
	return out
}

func newTestRetrier(f Fetcher, attempts int) (*Retrier, *[]time.Duration) {
	cfg := testConfig()
	cfg.MaxAttempts = attempts
	cfg.RetryBackoff = 100 * time.Millisecond
	cfg.RetryBackoffMax = 250 * time.Millisecond

	var slept []time.Duration
	r := NewRetrier(f, cfg, NewMetrics())
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestRetrierReturnsFirstSuccess(t *testing.T) {
	f := &scriptedFetcher{outcomes: []models.FetchOutcome{
		models.TransportErrorOutcome(ErrStatus{Step: StepData, StatusCode: 502}),
		models.RowsOutcome([]models.RawRow{{ProductName: "Elma"}}),
	}}
	r, slept := newTestRetrier(f, 3)

	out, attempts := r.Fetch(context.Background(), testItem())
	if out.Kind != models.OutcomeRows || attempts != 2 || f.calls != 2 {
		t.Fatalf("kind=%v attempts=%d calls=%d, want rows after 2", out.Kind, attempts, f.calls)
	}
	if len(*slept) != 1 || (*slept)[0] != 100*time.Millisecond {
		t.Fatalf("slept=%v, want [100ms]", *slept)
	}
}

func TestRetrierEmptyIsSuccess(t *testing.T) {
	f := &scriptedFetcher{outcomes: []models.FetchOutcome{models.EmptyOutcome()}}
	r, slept := newTestRetrier(f, 3)

	out, attempts := r.Fetch(context.Background(), testItem())
	if out.Kind != models.OutcomeEmpty || attempts != 1 || len(*slept) != 0 {
		t.Fatalf("kind=%v attempts=%d slept=%v", out.Kind, attempts, *slept)
	}
}

func TestRetrierExhaustsBudget(t *testing.T) {
	last := models.BlockedOutcome(&parser.BlockedError{Step: StepData, Marker: "cloudflare"})
	f := &scriptedFetcher{outcomes: []models.FetchOutcome{
		models.TransportErrorOutcome(ErrTimeout{Err: context.DeadlineExceeded}),
		models.BlockedOutcome(&parser.BlockedError{Step: StepPrime, Marker: "attention required"}),
		last,
	}}
	r, slept := newTestRetrier(f, 3)

	out, attempts := r.Fetch(context.Background(), testItem())
	if attempts != 3 || f.calls != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3", attempts, f.calls)
	}
	if out.Kind != models.OutcomeBlocked || !errors.Is(out.Err, last.Err) {
		t.Fatalf("outcome=%v err=%v, want the last failure verbatim", out.Kind, out.Err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("slept=%v, want %v", *slept, want)
	}
}

func TestRetrierBackoffLinearAndCapped(t *testing.T) {
	r, _ := newTestRetrier(&scriptedFetcher{}, 5)

	prev := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		d := r.backoff(attempt)
		if d < prev {
			t.Fatalf("backoff(%d)=%v decreased from %v", attempt, d, prev)
		}
		if d > r.backoffMax {
			t.Fatalf("backoff(%d)=%v exceeds max %v", attempt, d, r.backoffMax)
		}
		prev = d
	}
	if got := r.backoff(2); got != 200*time.Millisecond {
		t.Fatalf("backoff(2)=%v, want 200ms", got)
	}
}

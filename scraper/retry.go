package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-hal/config"
	"github.com/aluiziolira/go-scrape-hal/models"
)

// Fetcher performs a single fetch attempt for a work item.
type Fetcher interface {
	Fetch(ctx context.Context, item models.WorkItem) models.FetchOutcome
}

// Retrier turns transient fetch failures into a definitive outcome.
type Retrier struct {
	fetcher     Fetcher
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	metrics     *Metrics
	sleep       func(time.Duration)
}

// NewRetrier wraps fetcher with the attempt budget and backoff from cfg.
func NewRetrier(fetcher Fetcher, cfg *config.Config, metrics *Metrics) *Retrier {
	return &Retrier{
		fetcher:     fetcher,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.RetryBackoff,
		backoffMax:  cfg.RetryBackoffMax,
		metrics:     metrics,
		sleep:       time.Sleep,
	}
}

// Fetch attempts item until it succeeds or the budget runs out, returning
// the final outcome and the number of attempts made. After the last failed
// attempt the failure is returned verbatim.
func (r *Retrier) Fetch(ctx context.Context, item models.WorkItem) (models.FetchOutcome, int) {
	attempts := r.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var out models.FetchOutcome
	for attempt := 1; attempt <= attempts; attempt++ {
		out = r.fetcher.Fetch(ctx, item)
		if out.Successful() {
			return out, attempt
		}

		label := errorTypeLabel(out.Err)
		r.metrics.IncError(label)
		slog.Warn("fetch attempt failed",
			slog.String("item", item.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("category", label),
			slog.Any("error", out.Err),
		)

		if attempt < attempts {
			r.metrics.IncRetries()
			r.sleep(r.backoff(attempt))
		}
	}
	return out, attempts
}

// backoff grows linearly with the attempt number and is capped by the
// configured maximum.
func (r *Retrier) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := r.backoffBase * time.Duration(attempt)
	if r.backoffMax > 0 && delay > r.backoffMax {
		delay = r.backoffMax
	}
	return delay
}

// Package pipeline plans work items and drives them through fetch, normalize
// and store, mirroring committed records to an optional output writer.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/aluiziolira/go-scrape-hal/config"
	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/parser"
	"github.com/aluiziolira/go-scrape-hal/scraper"
)

// Fetcher resolves a work item to a definitive outcome, reporting the
// number of attempts it took. *scraper.Retrier satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, item models.WorkItem) (models.FetchOutcome, int)
}

// Store is the subset of the ingestion store the syncer writes through.
type Store interface {
	Ledger
	CommitItem(ctx context.Context, records []*models.PriceRecord, entry models.FetchLogEntry) (models.CommitResult, error)
	RecordFetchAttempt(ctx context.Context, entry models.FetchLogEntry) error
}

// Syncer runs a plan sequentially, pacing upstream calls.
type Syncer struct {
	fetcher      Fetcher
	store        Store
	writer       OutputWriter
	metrics      *scraper.Metrics
	delay        time.Duration
	randomDelay  time.Duration
	skipExisting bool

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(n int64) int64
	now    func() time.Time
}

// SyncerOption customises a Syncer.
type SyncerOption func(*Syncer)

// WithOutput mirrors every committed record to w.
func WithOutput(w OutputWriter) SyncerOption {
	return func(s *Syncer) { s.writer = w }
}

// WithMetrics records item and row counters on m.
func WithMetrics(m *scraper.Metrics) SyncerOption {
	return func(s *Syncer) { s.metrics = m }
}

// NewSyncer builds a syncer with pacing and skip policy from cfg.
func NewSyncer(fetcher Fetcher, store Store, cfg *config.Config, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		fetcher:      fetcher,
		store:        store,
		delay:        cfg.Delay,
		randomDelay:  cfg.RandomDelay,
		skipExisting: cfg.SkipExisting,
		sleep:        sleepContext,
		jitter:       rand.Int64N,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dayTally accumulates what happened to one calendar day.
type dayTally struct {
	records  int
	hasError bool
}

// Run processes every work item of plan. Item failures are recorded in the
// ledger and never abort the run; only a store that cannot record them
// does. Cancellation is observed between items, and the summary returned
// alongside a cancellation reports Interrupted.
func (s *Syncer) Run(ctx context.Context, plan *Plan) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		StartTime:    s.now(),
		ErrorsByKind: make(map[string]int),
	}
	days := make(map[string]*dayTally)
	var order []string
	defer func() {
		finishDays(summary, days, order)
		summary.EndTime = s.now()
	}()

	first := true
	for item, err := range s.items(ctx, plan, summary) {
		if err != nil {
			if ctx.Err() != nil {
				summary.Interrupted = true
				break
			}
			return summary, err
		}
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		if !first {
			if err := s.pause(ctx); err != nil {
				summary.Interrupted = true
				break
			}
		}
		first = false

		out, attempts := s.fetcher.Fetch(ctx, item)
		if !out.Successful() && ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		summary.Attempted++
		if attempts > 1 {
			summary.Retries += attempts - 1
		}

		day := item.ISODate()
		tally, ok := days[day]
		if !ok {
			tally = &dayTally{}
			days[day] = tally
			order = append(order, day)
		}

		if !out.Successful() {
			tally.hasError = true
			if err := s.recordFailure(ctx, item, out.Err, summary); err != nil {
				return summary, err
			}
			continue
		}

		n, err := s.commit(ctx, item, out, summary)
		if err != nil {
			tally.hasError = true
			if err := s.recordFailure(ctx, item, err, summary); err != nil {
				return summary, err
			}
			continue
		}
		tally.records += n
	}

	if summary.Interrupted {
		slog.Warn("sync interrupted", slog.Int("attempted", summary.Attempted))
		return summary, ctx.Err()
	}
	return summary, nil
}

func (s *Syncer) items(ctx context.Context, plan *Plan, summary *models.RunSummary) iter.Seq2[models.WorkItem, error] {
	if s.skipExisting {
		return plan.Pending(ctx, s.store, func(item models.WorkItem) {
			summary.Skipped++
			slog.Debug("item already complete", slog.String("item", item.String()))
		})
	}
	return func(yield func(models.WorkItem, error) bool) {
		for item := range plan.Items() {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// commit normalizes the rows of a successful outcome and stores them with
// an ok or empty ledger entry, returning the number of records kept.
func (s *Syncer) commit(ctx context.Context, item models.WorkItem, out models.FetchOutcome, summary *models.RunSummary) (int, error) {
	fetchedAt := s.now()
	records, dropped := parser.NormalizeRows(item, out.Rows, fetchedAt)

	status := models.StatusOK
	if len(records) == 0 {
		status = models.StatusEmpty
	}
	entry := models.FetchLogEntry{
		Date:         item.ISODate(),
		CategorySlug: item.Category.Slug,
		Status:       status,
		RowCount:     len(records),
		FetchedAt:    fetchedAt,
	}

	// an item already fetched is committed even if the run is being cancelled
	res, err := s.store.CommitItem(context.WithoutCancel(ctx), records, entry)
	if err != nil {
		return 0, fmt.Errorf("commit %s: %w", item, err)
	}

	summary.RowsSeen += len(out.Rows)
	summary.RowsInserted += res.Inserted
	summary.NewProducts += res.NewProducts
	for reason, n := range dropped {
		summary.RowsDropped += n
		s.metrics.AddDropped(reason, n)
	}
	s.metrics.AddInserted(res.Inserted)
	s.metrics.IncItem(string(status))

	if status == models.StatusEmpty {
		summary.EmptyItems++
		slog.Info("item empty",
			slog.String("date", entry.Date),
			slog.String("category", entry.CategorySlug),
			slog.Int("rows_seen", len(out.Rows)),
		)
		return 0, nil
	}

	summary.OKItems++
	slog.Info("item committed",
		slog.String("date", entry.Date),
		slog.String("category", entry.CategorySlug),
		slog.Int("rows", len(records)),
		slog.Int("inserted", res.Inserted),
		slog.Int("new_products", res.NewProducts),
	)

	if s.writer != nil {
		if err := s.writer.Write(records); err != nil {
			slog.Warn("output mirror write failed", slog.String("item", item.String()), slog.Any("error", err))
		}
	}
	return len(records), nil
}

// recordFailure writes an error ledger entry for item. Failing to do so is
// the one condition that aborts a run.
func (s *Syncer) recordFailure(ctx context.Context, item models.WorkItem, cause error, summary *models.RunSummary) error {
	label := scraper.ErrorLabel(cause)
	summary.ErrorItems++
	summary.ErrorsByKind[label]++
	summary.FailedItems = append(summary.FailedItems, item.String())
	s.metrics.IncItem(string(models.StatusError))

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	slog.Warn("item failed",
		slog.String("date", item.ISODate()),
		slog.String("category", item.Category.Slug),
		slog.String("error_type", label),
		slog.String("error", msg),
	)

	entry := models.FetchLogEntry{
		Date:         item.ISODate(),
		CategorySlug: item.Category.Slug,
		Status:       models.StatusError,
		ErrorMessage: msg,
		FetchedAt:    s.now(),
	}
	if err := s.store.RecordFetchAttempt(context.WithoutCancel(ctx), entry); err != nil {
		return fmt.Errorf("record failure for %s: %w", item, err)
	}
	return nil
}

// pause sleeps the base delay plus uniform jitter in [0, randomDelay).
func (s *Syncer) pause(ctx context.Context) error {
	d := s.delay
	if s.randomDelay > 0 {
		d += time.Duration(s.jitter(int64(s.randomDelay)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	return s.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func finishDays(summary *models.RunSummary, days map[string]*dayTally, order []string) {
	for _, day := range order {
		tally := days[day]
		switch {
		case tally.records > 0:
			summary.FetchedDays++
		case tally.hasError:
			summary.ErrorDays++
		default:
			summary.EmptyDays++
		}
	}
}

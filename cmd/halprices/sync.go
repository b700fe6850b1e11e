package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-hal/config"
	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/pipeline"
	"github.com/aluiziolira/go-scrape-hal/scraper"
	"github.com/aluiziolira/go-scrape-hal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	baseURL      string
	start        string
	end          string
	types        []string
	timeout      time.Duration
	retries      int
	retrySleep   time.Duration
	sleep        time.Duration
	jitter       time.Duration
	skipExisting bool
	output       string
	format       string
	metricsAddr  string
}

func cmdSync(gf *globalFlags) *cobra.Command {
	var sf syncFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "fetch daily prices for a date range and store them",
		Long: `Fetch every (date, category) pair in the range and store the rows.
Without --start the run resumes the day after the latest stored date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, gf)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			applySyncFlags(cmd, &sf, cfg)
			if err := cfg.Validate(); err != nil {
				return &exitError{code: exitFatal, err: fmt.Errorf("invalid configuration: %w", err)}
			}
			return runSync(cfg)
		},
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVar(&sf.baseURL, "base-url", defaults.BaseURL, "listing page URL")
	flags.StringVar(&sf.start, "start", "", "first day YYYY-MM-DD (default: day after the latest stored date)")
	flags.StringVar(&sf.end, "end", "", "last day YYYY-MM-DD (default: today)")
	flags.StringSliceVar(&sf.types, "types", defaults.Categories, "categories: codes 1-4 or fruit, vegetable, imported, fish")
	flags.DurationVar(&sf.timeout, "timeout", defaults.Timeout, "per-request timeout")
	flags.IntVar(&sf.retries, "retries", defaults.MaxAttempts, "attempts per work item")
	flags.DurationVar(&sf.retrySleep, "retry-sleep", defaults.RetryBackoff, "linear retry backoff step")
	flags.DurationVar(&sf.sleep, "sleep", defaults.Delay, "base pause between upstream calls")
	flags.DurationVar(&sf.jitter, "jitter", defaults.RandomDelay, "random extra pause between upstream calls")
	flags.BoolVar(&sf.skipExisting, "skip-existing", false, "skip items the ledger marks ok or empty")
	flags.StringVarP(&sf.output, "output", "o", "", "also write committed records to this file")
	flags.StringVar(&sf.format, "format", defaults.OutputFormat, "output format: csv, json, or dual")
	flags.StringVar(&sf.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	return cmd
}

func applySyncFlags(cmd *cobra.Command, sf *syncFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = sf.baseURL
	}
	if flags.Changed("start") {
		cfg.Start = sf.start
	}
	if flags.Changed("end") {
		cfg.End = sf.end
	}
	if flags.Changed("types") {
		cfg.Categories = sf.types
	}
	if flags.Changed("timeout") {
		cfg.Timeout = sf.timeout
	}
	if flags.Changed("retries") {
		cfg.MaxAttempts = sf.retries
	}
	if flags.Changed("retry-sleep") {
		cfg.RetryBackoff = sf.retrySleep
		if cfg.RetryBackoffMax > 0 && cfg.RetryBackoffMax < sf.retrySleep {
			cfg.RetryBackoffMax = sf.retrySleep
		}
	}
	if flags.Changed("sleep") {
		cfg.Delay = sf.sleep
	}
	if flags.Changed("jitter") {
		cfg.RandomDelay = sf.jitter
	}
	if flags.Changed("skip-existing") {
		cfg.SkipExisting = sf.skipExisting
	}
	if flags.Changed("output") {
		cfg.OutputFile = sf.output
	}
	if flags.Changed("format") {
		cfg.OutputFormat = sf.format
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = sf.metricsAddr
	}
}

func runSync(cfg *config.Config) error {
	st, err := store.Open(cfg.DBPath, store.WithMode(cfg.Schema), store.WithProductCacheSize(cfg.ProductCacheSize))
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current item")
	}()

	start, end, err := resolveRange(ctx, cfg, st)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	if start.After(end) {
		slog.Info("store is up to date",
			slog.String("start", start.Format(models.DateLayout)),
			slog.String("end", end.Format(models.DateLayout)),
		)
		printSummary(&models.RunSummary{}, 0, cfg, storeStats(st))
		return nil
	}

	plan, err := pipeline.NewPlan(start, end, cfg.Categories)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	if err != nil {
		return &exitError{code: exitFatal, err: fmt.Errorf("initialising client: %w", err)}
	}
	retrier := scraper.NewRetrier(client, cfg, metrics)

	opts := []pipeline.SyncerOption{pipeline.WithMetrics(metrics)}
	if cfg.OutputFile != "" {
		writer, err := pipeline.NewOutputWriter(cfg.OutputFormat, cfg.OutputFile)
		if err != nil {
			return &exitError{code: exitFatal, err: fmt.Errorf("creating writer: %w", err)}
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close writer", slog.Any("error", err))
			}
		}()
		opts = append(opts, pipeline.WithOutput(writer))
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting sync",
		slog.String("start", plan.Start().Format(models.DateLayout)),
		slog.String("end", plan.End().Format(models.DateLayout)),
		slog.Int("items", plan.Len()),
		slog.String("schema", cfg.Schema),
		slog.Bool("skip_existing", cfg.SkipExisting),
	)

	syncer := pipeline.NewSyncer(retrier, st, cfg, opts...)
	summary, runErr := syncer.Run(ctx, plan)
	printSummary(summary, summary.EndTime.Sub(summary.StartTime), cfg, storeStats(st))

	switch {
	case summary.Interrupted:
		return &exitError{code: exitFatal, err: fmt.Errorf("sync interrupted: %w", runErr)}
	case runErr != nil:
		return &exitError{code: exitFatal, err: runErr}
	case summary.HasErrors():
		return &exitError{code: exitItemErrors}
	}
	return nil
}

// resolveRange applies the resume rule: without an explicit start the run
// begins the day after the latest stored date, or at config.DefaultStart.
// Only a derived start may fall after end; an explicit one is an error.
func resolveRange(ctx context.Context, cfg *config.Config, st *store.SQLiteStore) (start, end time.Time, err error) {
	start, end, err = cfg.DateBounds()
	if err != nil {
		return start, end, err
	}
	if end.IsZero() {
		end = today()
	}
	if !start.IsZero() {
		if start.After(end) {
			return start, end, fmt.Errorf("end date %s is before start date %s",
				end.Format(models.DateLayout), start.Format(models.DateLayout))
		}
		return start, end, nil
	}

	latest, ok, err := st.MaxIngestedDate(ctx)
	if err != nil {
		return start, end, err
	}
	if ok {
		return latest.AddDate(0, 0, 1), end, nil
	}
	start, err = time.Parse(models.DateLayout, config.DefaultStart)
	return start, end, err
}

func storeStats(st *store.SQLiteStore) *models.StoreStats {
	stats, err := st.Stats(context.Background())
	if err != nil {
		slog.Warn("reading store stats", slog.Any("error", err))
		return nil
	}
	return &stats
}

func printSummary(result *models.RunSummary, duration time.Duration, cfg *config.Config, stats *models.StoreStats) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Sync complete")
	fmt.Printf("  Attempted:     %d\n", result.Attempted)
	fmt.Printf("  Skipped:       %d\n", result.Skipped)
	fmt.Printf("  OK items:      %d\n", result.OKItems)
	fmt.Printf("  Empty items:   %d\n", result.EmptyItems)
	fmt.Printf("  Error items:   %d\n", result.ErrorItems)
	fmt.Printf("  Retries:       %d\n", result.Retries)
	fmt.Printf("  Rows seen:     %d\n", result.RowsSeen)
	fmt.Printf("  Rows inserted: %d\n", result.RowsInserted)
	fmt.Printf("  Rows dropped:  %d\n", result.RowsDropped)
	if cfg.Schema == config.SchemaCatalog {
		fmt.Printf("  New products:  %d\n", result.NewProducts)
	}
	fmt.Printf("  Days:          fetched=%d empty=%d error=%d\n", result.FetchedDays, result.EmptyDays, result.ErrorDays)
	if len(result.ErrorsByKind) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByKind)
	}
	if len(result.FailedItems) > 0 {
		fmt.Printf("  Failed items:  %v\n", result.FailedItems)
	}
	if stats != nil {
		fmt.Printf("  Store:         max_date=%s distinct_days=%d total_rows=%d\n", stats.MaxDate, stats.DistinctDays, stats.TotalRows)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if cfg.OutputFile != "" {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Println(separator)
}

package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-hal/config"
	"github.com/aluiziolira/go-scrape-hal/models"
	"github.com/aluiziolira/go-scrape-hal/scraper"
	"github.com/aluiziolira/go-scrape-hal/store"
	"github.com/jarcoal/httpmock"
)

const testURL = "http://example.test/hal-fiyatlari"

func listingHTML(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<html><body><table>\n<tr><th>Ürün</th><th>Tür</th><th>Birim</th><th>En Düşük</th><th>En Yüksek</th><th>Tarih</th></tr>\n")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td>%s</td>", cell)
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

type harness struct {
	store  *store.SQLiteStore
	syncer *Syncer
	posts  int
}

// newHarness wires a real client, retrier and store behind a mock transport
// whose data step answers with body.
func newHarness(t *testing.T, mode string, body func(date, typ string) string) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = testURL
	cfg.Timeout = 2 * time.Second
	cfg.MaxAttempts = 3
	cfg.RetryBackoff = 0
	cfg.RetryBackoffMax = 0
	cfg.Delay = 0
	cfg.RandomDelay = 0

	st, err := store.Open(filepath.Join(t.TempDir(), "hal.sqlite"), store.WithMode(mode))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	metrics := scraper.NewMetrics()
	client, err := scraper.NewClient(cfg, metrics)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	h := &harness{store: st}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, testURL, httpmock.NewStringResponder(http.StatusOK, "<html><form></form></html>"))
	transport.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		h.posts++
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusOK, body(req.PostForm.Get("date"), req.PostForm.Get("type"))), nil
	})
	client.SetTransport(transport)

	retrier := scraper.NewRetrier(client, cfg, metrics)
	h.syncer = NewSyncer(retrier, st, cfg, WithMetrics(metrics))
	return h
}

func (h *harness) run(t *testing.T, start, end string, tokens ...string) *models.RunSummary {
	t.Helper()
	summary, err := h.syncer.Run(context.Background(), mustPlan(t, start, end, tokens...))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return summary
}

func TestSyncStoresValidRow(t *testing.T) {
	h := newHarness(t, store.ModeFlat, func(date, typ string) string {
		if date != "17.02.2026" || typ != "vegetable" {
			return "unexpected form"
		}
		return listingHTML([]string{"Domates", "Sebze", "KG", "10,50", "15,00", "17.02.2026"})
	})

	summary := h.run(t, "2026-02-17", "2026-02-17", "vegetable")
	if summary.HasErrors() || summary.RowsInserted != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	ctx := context.Background()
	records, err := h.store.QueryPrices(ctx, store.PriceQuery{From: "2026-02-17", To: "2026-02-17"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}
	rec := records[0]
	if rec.MinPrice == nil || *rec.MinPrice != 10.50 || rec.MaxPrice == nil || *rec.MaxPrice != 15.0 {
		t.Fatalf("record=%+v", rec)
	}
	entry, err := h.store.FetchLogEntry(ctx, "2026-02-17", "vegetable")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if entry.Status != models.StatusOK || entry.RowCount != 1 {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestSyncNoRecordsMarker(t *testing.T) {
	h := newHarness(t, store.ModeFlat, func(date, typ string) string {
		return "<html><body><p>Kayıtlı veri bulunamadı</p></body></html>"
	})

	summary := h.run(t, "2026-02-17", "2026-02-17", "vegetable")
	if summary.HasErrors() || summary.EmptyItems != 1 || summary.EmptyDays != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	ctx := context.Background()
	st, err := h.store.Stats(ctx)
	if err != nil || st.TotalRows != 0 {
		t.Fatalf("stats=%+v err=%v", st, err)
	}
	entry, err := h.store.FetchLogEntry(ctx, "2026-02-17", "vegetable")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if entry.Status != models.StatusEmpty || entry.RowCount != 0 {
		t.Fatalf("entry=%+v", entry)
	}
}

func TestSyncBlockedOnEveryAttempt(t *testing.T) {
	h := newHarness(t, store.ModeFlat, func(date, typ string) string {
		return "<html><head><title>Attention Required! | Cloudflare</title></head></html>"
	})

	summary := h.run(t, "2026-02-17", "2026-02-17", "vegetable")
	if !summary.HasErrors() || summary.ErrorItems != 1 || summary.ErrorDays != 1 {
		t.Fatalf("summary=%+v", summary)
	}
	if h.posts != 3 {
		t.Fatalf("posts=%d, want the full retry budget", h.posts)
	}
	if summary.Retries != 2 || summary.ErrorsByKind["blocked"] != 1 {
		t.Fatalf("summary=%+v", summary)
	}

	ctx := context.Background()
	entry, err := h.store.FetchLogEntry(ctx, "2026-02-17", "vegetable")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if entry.Status != models.StatusError || entry.ErrorMessage == "" {
		t.Fatalf("entry=%+v", entry)
	}
	if st, _ := h.store.Stats(ctx); st.TotalRows != 0 {
		t.Fatalf("rows stored for blocked item: %+v", st)
	}
}

func TestSyncDropsRowWithoutName(t *testing.T) {
	h := newHarness(t, store.ModeFlat, func(date, typ string) string {
		return listingHTML(
			[]string{"", "Sebze", "KG", "5,00", "7,00", "17.02.2026"},
			[]string{"Biber", "Sebze", "KG", "20,00", "30,00", "17.02.2026"},
		)
	})

	summary := h.run(t, "2026-02-17", "2026-02-17", "vegetable")
	if summary.HasErrors() || summary.RowsInserted != 1 || summary.RowsDropped != 1 || summary.RowsSeen != 2 {
		t.Fatalf("summary=%+v", summary)
	}
	records, err := h.store.QueryPrices(context.Background(), store.PriceQuery{From: "2026-02-17", To: "2026-02-17"})
	if err != nil || len(records) != 1 || records[0].ProductName != "Biber" {
		t.Fatalf("records=%v err=%v", records, err)
	}
}

func TestSyncRerunIsIdempotent(t *testing.T) {
	h := newHarness(t, store.ModeCatalog, func(date, typ string) string {
		return listingHTML([]string{"Hamsi", "Balık", "KG", "120,00", "", date})
	})

	first := h.run(t, "2024-01-01", "2024-01-02", "fish")
	second := h.run(t, "2024-01-01", "2024-01-02", "fish")
	if first.RowsInserted != 2 || first.NewProducts != 1 {
		t.Fatalf("first=%+v", first)
	}
	if second.RowsInserted != 0 || second.NewProducts != 0 || second.OKItems != 2 {
		t.Fatalf("second=%+v", second)
	}

	ctx := context.Background()
	n, err := h.store.CountFetchLog(ctx)
	if err != nil || n != 2 {
		t.Fatalf("ledger rows=%d err=%v", n, err)
	}
	latest, ok, err := h.store.MaxIngestedDate(ctx)
	if err != nil || !ok || latest.Format(models.DateLayout) != "2024-01-02" {
		t.Fatalf("max date=%v ok=%v err=%v", latest, ok, err)
	}
}

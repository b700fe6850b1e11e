package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
)

func TestGetOrCreateProductStableIdentity(t *testing.T) {
	s := openTestStore(t, WithMode(ModeCatalog))
	ctx := context.Background()

	id, created, err := s.GetOrCreateProduct(ctx, 1, "Domates", "KG")
	if err != nil || !created {
		t.Fatalf("first call id=%d created=%v err=%v", id, created, err)
	}
	again, created, err := s.GetOrCreateProduct(ctx, 1, "Domates", "KG")
	if err != nil || created || again != id {
		t.Fatalf("second call id=%d created=%v err=%v, want %d reused", again, created, err, id)
	}
	other, created, err := s.GetOrCreateProduct(ctx, 1, "Domates", "KASA")
	if err != nil || !created || other == id {
		t.Fatalf("different unit id=%d created=%v err=%v", other, created, err)
	}
}

func TestGetOrCreateProductSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	ctx := context.Background()

	s, err := Open(path, WithMode(ModeCatalog))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id, _, err := s.GetOrCreateProduct(ctx, 2, "Hamsi", "KG")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Close()

	s, err = Open(path, WithMode(ModeCatalog), WithProductCacheSize(8))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	again, created, err := s.GetOrCreateProduct(ctx, 2, "Hamsi", "KG")
	if err != nil || created || again != id {
		t.Fatalf("after reopen id=%d created=%v err=%v, want %d", again, created, err, id)
	}
}

func TestCatalogCommitCountsNewProducts(t *testing.T) {
	s := openTestStore(t, WithMode(ModeCatalog))
	ctx := context.Background()

	apple := testRecord("2024-01-01", "Elma", price(12), price(18))
	apple.CategorySlug = "fruit"
	tomato := testRecord("2024-01-01", "Domates", price(10), price(15))
	entry := models.FetchLogEntry{Date: "2024-01-01", CategorySlug: "fruit", Status: models.StatusOK, RowCount: 2, FetchedAt: time.Now()}

	res, err := s.CommitItem(ctx, []*models.PriceRecord{apple, tomato, apple}, entry)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Inserted != 2 || res.NewProducts != 2 {
		t.Fatalf("result=%+v, want 2 inserted and 2 new products", res)
	}

	next := testRecord("2024-01-02", "Elma", price(13), price(19))
	next.CategorySlug = "fruit"
	entry.Date = "2024-01-02"
	res, err = s.CommitItem(ctx, []*models.PriceRecord{next}, entry)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Inserted != 1 || res.NewProducts != 0 {
		t.Fatalf("result=%+v, want product reused", res)
	}

	got, err := s.QueryPrices(ctx, PriceQuery{From: "2024-01-01", To: "2024-01-02", CategorySlug: "fruit"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 || got[0].CategoryText != "MEYVE / SEBZE" || got[0].CategoryCode != "1" {
		t.Fatalf("catalog query=%v", got)
	}

	latest, ok, err := s.MaxIngestedDate(ctx)
	if err != nil || !ok || latest.Format(models.DateLayout) != "2024-01-02" {
		t.Fatalf("max date=%v ok=%v err=%v", latest, ok, err)
	}
}

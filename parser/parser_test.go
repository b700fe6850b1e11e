package parser

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-hal/models"
)

func testItem() models.WorkItem {
	return models.WorkItem{
		Date:     time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC),
		Category: models.Category{Code: "2", Slug: SlugVegetable},
	}
}

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name    string
		row     models.RawRow
		wantErr error
	}{
		{
			name:    "valid row",
			row:     models.RawRow{ProductName: "Domates", Unit: "KG"},
			wantErr: nil,
		},
		{
			name:    "missing name",
			row:     models.RawRow{ProductName: "  ", Unit: "KG"},
			wantErr: ErrMissingName,
		},
		{
			name:    "missing unit",
			row:     models.RawRow{ProductName: "Domates", Unit: ""},
			wantErr: ErrMissingUnit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRow(tt.row); err != tt.wantErr {
				t.Errorf("ValidateRow() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeRow(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 17, 9, 30, 15, 500, time.UTC)
	row := models.RawRow{
		ProductName:  " Domates ",
		CategoryText: "Sebze",
		Unit:         "KG",
		MinPrice:     "10,50",
		MaxPrice:     "15,00",
		SourceDate:   "17.02.2026",
	}

	rec, err := NormalizeRow(testItem(), row, fetchedAt)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.Date != "2026-02-17" {
		t.Fatalf("date=%q, want 2026-02-17", rec.Date)
	}
	if rec.CategoryCode != "2" || rec.CategorySlug != SlugVegetable {
		t.Fatalf("category=%q/%q, want 2/vegetable", rec.CategoryCode, rec.CategorySlug)
	}
	if rec.ProductName != "Domates" {
		t.Fatalf("product=%q, want Domates", rec.ProductName)
	}
	if rec.MinPrice == nil || *rec.MinPrice != 10.5 {
		t.Fatalf("min price=%v, want 10.5", rec.MinPrice)
	}
	if rec.MaxPrice == nil || *rec.MaxPrice != 15 {
		t.Fatalf("max price=%v, want 15", rec.MaxPrice)
	}
	if !rec.FetchedAt.Equal(fetchedAt.Truncate(time.Second)) {
		t.Fatalf("fetched at=%v", rec.FetchedAt)
	}
}

func TestNormalizeRowBlankPricesAreAbsent(t *testing.T) {
	row := models.RawRow{ProductName: "Hamsi", Unit: "KG", MinPrice: "", MaxPrice: "yok"}
	rec, err := NormalizeRow(testItem(), row, time.Now())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if rec.MinPrice != nil || rec.MaxPrice != nil {
		t.Fatalf("prices=%v/%v, want nil/nil", rec.MinPrice, rec.MaxPrice)
	}
}

func TestNormalizeRowsDropsAnomalies(t *testing.T) {
	rows := []models.RawRow{
		{ProductName: "", Unit: "KG", MinPrice: "1,00"},
		{ProductName: "Biber", Unit: "KG", MinPrice: "20,00", MaxPrice: "30,00"},
		{ProductName: "Limon", Unit: " "},
	}

	records, dropped := NormalizeRows(testItem(), rows, time.Now())
	if len(records) != 1 || records[0].ProductName != "Biber" {
		t.Fatalf("records=%v, want only Biber", records)
	}
	if dropped["missing_name"] != 1 || dropped["missing_unit"] != 1 {
		t.Fatalf("dropped=%v, want one missing_name and one missing_unit", dropped)
	}
}

package parser

import (
	"errors"
	"testing"
)

func TestNormalizeCategoryAliases(t *testing.T) {
	aliases := map[string][]string{
		SlugFruit:     {"1", "meyve", "MEYVE", "fruit", " Fruit "},
		SlugVegetable: {"2", "sebze", "Sebze", "vegetable", "VEGETABLE"},
		SlugImported:  {"3", "ithal", "Imported", "imported"},
		SlugFish:      {"4", "balik", "balık", "fish", "FISH"},
	}

	for slug, tokens := range aliases {
		for _, token := range tokens {
			t.Run(token, func(t *testing.T) {
				cat, err := NormalizeCategory(token)
				if err != nil {
					t.Fatalf("NormalizeCategory(%q): %v", token, err)
				}
				if cat.Slug != slug {
					t.Fatalf("NormalizeCategory(%q) = %q, want %q", token, cat.Slug, slug)
				}
			})
		}
	}
}

func TestNormalizeCategoryKeepsRequestedCode(t *testing.T) {
	cat, err := NormalizeCategory("  2 ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cat.Code != "2" {
		t.Fatalf("code=%q, want 2", cat.Code)
	}
}

func TestNormalizeCategoryInvalid(t *testing.T) {
	for _, token := range []string{"", "5", "0", "meat", "fruits", "sebzeler"} {
		t.Run(token, func(t *testing.T) {
			_, err := NormalizeCategory(token)
			if !errors.Is(err, ErrInvalidCategory) {
				t.Fatalf("NormalizeCategory(%q) error = %v, want ErrInvalidCategory", token, err)
			}
			var invalid *InvalidCategoryError
			if !errors.As(err, &invalid) || invalid.Input != token {
				t.Fatalf("error should carry input %q, got %v", token, err)
			}
		})
	}
}

func TestNormalizeCategoriesDedupPreservesOrder(t *testing.T) {
	cats, err := NormalizeCategories([]string{"fish", "1", "", "balik", "meyve", "2"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []string{SlugFish, SlugFruit, SlugVegetable}
	if len(cats) != len(want) {
		t.Fatalf("categories=%v, want %v", cats, want)
	}
	for i, slug := range want {
		if cats[i].Slug != slug {
			t.Fatalf("categories[%d]=%q, want %q", i, cats[i].Slug, slug)
		}
	}
	if cats[1].Code != "1" {
		t.Fatalf("first occurrence code should win, got %q", cats[1].Code)
	}
}

func TestNormalizeCategoriesFailsFast(t *testing.T) {
	if _, err := NormalizeCategories([]string{"fruit", "bogus"}); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

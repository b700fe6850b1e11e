package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-hal/models"
)

// Canonical category slugs.
const (
	SlugFruit     = "fruit"
	SlugVegetable = "vegetable"
	SlugImported  = "imported"
	SlugFish      = "fish"
)

// ErrInvalidCategory is matched by every InvalidCategoryError.
var ErrInvalidCategory = errors.New("invalid category")

// InvalidCategoryError reports a token that matches no category alias.
type InvalidCategoryError struct {
	Input string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q: accepted values are 1,2,3,4 or fruit, vegetable, imported, fish", e.Input)
}

func (e *InvalidCategoryError) Is(target error) bool {
	return target == ErrInvalidCategory
}

var categoryAliases = map[string]string{
	"1":         SlugFruit,
	"2":         SlugVegetable,
	"3":         SlugImported,
	"4":         SlugFish,
	"meyve":     SlugFruit,
	"sebze":     SlugVegetable,
	"ithal":     SlugImported,
	"balik":     SlugFish,
	"balık":     SlugFish,
	"fruit":     SlugFruit,
	"vegetable": SlugVegetable,
	"imported":  SlugImported,
	"fish":      SlugFish,
}

// Slugs lists the canonical slugs in upstream code order.
func Slugs() []string {
	return []string{SlugFruit, SlugVegetable, SlugImported, SlugFish}
}

// NormalizeCategory maps a legacy code or Turkish/English name to its category.
func NormalizeCategory(token string) (models.Category, error) {
	code := strings.TrimSpace(token)
	slug, ok := categoryAliases[strings.ToLower(code)]
	if !ok {
		return models.Category{}, &InvalidCategoryError{Input: token}
	}
	return models.Category{Code: code, Slug: slug}, nil
}

// NormalizeCategories normalizes tokens, dropping later duplicates of a slug.
// Blank tokens are ignored.
func NormalizeCategories(tokens []string) ([]models.Category, error) {
	out := make([]models.Category, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if strings.TrimSpace(token) == "" {
			continue
		}
		cat, err := NormalizeCategory(token)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[cat.Slug]; ok {
			continue
		}
		seen[cat.Slug] = struct{}{}
		out = append(out, cat)
	}
	return out, nil
}

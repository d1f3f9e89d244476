package constants

import (
	"strings"
)

// Category is the expense category attached to a receipt.
type Category string

const (
	Business   Category = "business"
	Personal   Category = "personal"
	Medical    Category = "medical"
	Charitable Category = "charitable"
	Travel     Category = "travel"
	Meals      Category = "meals"
	Office     Category = "office"
	Education  Category = "education"
)

// DefaultCategory is used by quick uploads that skip category selection.
const DefaultCategory = Business

var allCategories = []Category{
	Business,
	Personal,
	Medical,
	Charitable,
	Travel,
	Meals,
	Office,
	Education,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps free-form input onto a known category.
// Unknown input falls back to DefaultCategory with ok=false.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return DefaultCategory, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Category{
		"work":        Business,
		"donation":    Charitable,
		"charity":     Charitable,
		"doctor":      Medical,
		"pharmacy":    Medical,
		"hotel":       Travel,
		"airline":     Travel,
		"uber":        Travel,
		"taxi":        Travel,
		"restaurant":  Meals,
		"supplies":    Office,
		"home office": Office,
		"tuition":     Education,
		"training":    Education,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return DefaultCategory, false
}

package constants

import (
	"strings"
)

type Category string

const (
	FoodAndDining  Category = "Food & Dining"
	Groceries      Category = "Groceries"
	Transportation Category = "Transportation"
	Utilities      Category = "Utilities"
	OfficeSupplies Category = "Office Supplies"
	Electronics    Category = "Electronics"
	Services       Category = "Services"
	Entertainment  Category = "Entertainment"
	Travel         Category = "Travel"
	Other          Category = "Other"
)

var allCategories = []Category{
	FoodAndDining,
	Groceries,
	Transportation,
	Utilities,
	OfficeSupplies,
	Electronics,
	Services,
	Entertainment,
	Travel,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"food":          FoodAndDining,
		"dining":        FoodAndDining,
		"restaurant":    FoodAndDining,
		"meals":         FoodAndDining,
		"grocery":       Groceries,
		"supermarket":   Groceries,
		"transport":     Transportation,
		"uber":          Transportation,
		"lyft":          Transportation,
		"taxi":          Transportation,
		"gas":           Transportation,
		"fuel":          Transportation,
		"utility":       Utilities,
		"internet":      Utilities,
		"electricity":   Utilities,
		"office":        OfficeSupplies,
		"stationery":    OfficeSupplies,
		"hardware":      Electronics,
		"computer":      Electronics,
		"service":       Services,
		"subscription":  Services,
		"saas":          Services,
		"movies":        Entertainment,
		"streaming":     Entertainment,
		"airline":       Travel,
		"hotel":         Travel,
		"accommodation": Travel,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if strings.EqualFold(string(cat), normalized) {
			return cat, true
		}
	}

	return Other, false
}

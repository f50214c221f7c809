package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "json fence",
			response: "Here you go:\n```json\n{\"vendor\": \"Joe's\"}\n```\nLet me know!",
			want:     `{"vendor": "Joe's"}`,
		},
		{
			name:     "bare fence",
			response: "```\n{\"total\": 5}\n```",
			want:     `{"total": 5}`,
		},
		{
			name:     "commentary around object",
			response: `Sure! The extracted data is {"vendor": "Acme", "total": 12.5} as requested.`,
			want:     `{"vendor": "Acme", "total": 12.5}`,
		},
		{
			name:     "array payload",
			response: `Categories: ["Groceries", "Travel"] done.`,
			want:     `["Groceries", "Travel"]`,
		},
		{
			name:     "braces inside strings",
			response: `{"vendor": "Curly {Brace} Cafe", "total": 3}`,
			want:     `{"vendor": "Curly {Brace} Cafe", "total": 3}`,
		},
		{
			name:     "no json at all",
			response: "I could not read the receipt.",
			want:     "I could not read the receipt.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONBlock(tt.response))
		})
	}
}

func TestSanitizeExtraction(t *testing.T) {
	m := map[string]any{
		"vendor":     "Acme",
		"total":      10.0,
		"confidence": 0.97,
		"subtotal":   nil,
		"items": []any{
			map[string]any{"name": "pen", "price": 10.0, "sku": "A-1", "category": nil},
		},
	}

	dropped := SanitizeExtraction(m)

	assert.NotContains(t, m, "confidence")
	assert.NotContains(t, m, "subtotal")
	item := m["items"].([]any)[0].(map[string]any)
	assert.NotContains(t, item, "sku")
	assert.NotContains(t, item, "category")
	assert.Equal(t, "pen", item["name"])
	assert.Len(t, dropped, 4)
}

func TestSanitizeExtractionDefaultsMissingItemName(t *testing.T) {
	tests := []struct {
		name string
		item map[string]any
	}{
		{"absent name", map[string]any{"price": 5.0}},
		{"null name", map[string]any{"name": nil, "price": 5.0}},
		{"empty name", map[string]any{"name": "", "price": 5.0}},
		{"non-string name", map[string]any{"name": 42.0, "price": 5.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[string]any{"vendor": "Acme", "total": 5.0, "items": []any{tt.item}}
			SanitizeExtraction(m)
			item := m["items"].([]any)[0].(map[string]any)
			assert.Equal(t, "Unknown Item", item["name"])
			assert.Equal(t, 5.0, item["price"])
		})
	}
}

func TestSanitizeExtractionKeepsNullTotal(t *testing.T) {
	m := map[string]any{"vendor": "Acme", "total": nil}
	SanitizeExtraction(m)
	assert.Contains(t, m, "total")
}

func TestNormalizeExtractionDefaults(t *testing.T) {
	m := NormalizeExtraction(map[string]any{}, "raw text")

	assert.Equal(t, "Unknown Vendor", m["vendor"])
	assert.Equal(t, "USD", m["currency"])
	assert.Equal(t, 0.0, m["total"])
	assert.Equal(t, []any{}, m["items"])
	assert.Equal(t, "raw text", m["ocr_text"])
	assert.NotEmpty(t, m["date"])
}

func TestNormalizeExtractionInfersTotal(t *testing.T) {
	m := NormalizeExtraction(map[string]any{
		"vendor": "Acme",
		"date":   "2024-03-01",
		"items": []any{
			map[string]any{"name": "a", "price": 4.0, "quantity": 2.0},
			map[string]any{"name": "b", "price": 1.5},
		},
	}, "txt")

	assert.Equal(t, 9.5, m["total"])
}

func TestNormalizeExtractionKeepsProvidedFields(t *testing.T) {
	m := NormalizeExtraction(map[string]any{
		"vendor":   "Acme",
		"date":     "2024-03-01",
		"total":    7.0,
		"currency": "EUR",
	}, "txt")

	assert.Equal(t, "Acme", m["vendor"])
	assert.Equal(t, "2024-03-01", m["date"])
	assert.Equal(t, 7.0, m["total"])
	assert.Equal(t, "EUR", m["currency"])
}

func TestDefaultExtraction(t *testing.T) {
	m := DefaultExtraction("scanned text")

	assert.Equal(t, "Unknown Vendor", m["vendor"])
	assert.Equal(t, 0.0, m["total"])
	assert.Equal(t, "USD", m["currency"])
	assert.Equal(t, "scanned text", m["ocr_text"])
}

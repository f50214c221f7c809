package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter replays canned responses in order.
type fakeCompleter struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string, _ float32) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

func TestExtractReceiptFencedJSON(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"```json\n{\"vendor\": \"Corner Deli\", \"date\": \"2024-05-01\", \"items\": [{\"name\": \"sandwich\", \"price\": 8.5, \"quantity\": 1}], \"total\": 8.5}\n```",
	}}
	e := NewExtractor(completer, 0, nil)

	m := e.ExtractReceipt(context.Background(), "CORNER DELI ...")

	assert.Equal(t, "Corner Deli", m["vendor"])
	assert.Equal(t, "2024-05-01", m["date"])
	assert.Equal(t, 8.5, m["total"])
	assert.Equal(t, "USD", m["currency"])
	assert.Equal(t, "CORNER DELI ...", m["ocr_text"])
}

func TestExtractReceiptCommentaryWrapped(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		`Here is the receipt data: {"vendor": "Acme", "date": "2024-01-15", "total": "42.00"} hope that helps.`,
	}}
	e := NewExtractor(completer, 0, nil)

	m := e.ExtractReceipt(context.Background(), "raw")

	assert.Equal(t, "Acme", m["vendor"])
	assert.Equal(t, "42.00", m["total"])
}

func TestExtractReceiptLenientSanitize(t *testing.T) {
	// unknown key plus a null optional; the lenient pass should recover it
	completer := &fakeCompleter{responses: []string{
		`{"vendor": "Acme", "date": "2024-01-15", "total": 5, "subtotal": null, "confidence": 0.9}`,
	}}
	e := NewExtractor(completer, 0, nil)

	m := e.ExtractReceipt(context.Background(), "raw")

	assert.Equal(t, "Acme", m["vendor"])
	assert.NotContains(t, m, "confidence")
	assert.NotContains(t, m, "subtotal")
}

func TestExtractReceiptKeepsDataWhenItemNameMissing(t *testing.T) {
	// a single nameless item must not void the vendor/date/total the model
	// did produce
	completer := &fakeCompleter{responses: []string{
		`{"vendor": "Acme", "date": "2024-01-15", "total": 5, "items": [{"price": 5}]}`,
	}}
	e := NewExtractor(completer, 0, nil)

	m := e.ExtractReceipt(context.Background(), "raw")

	assert.Equal(t, "Acme", m["vendor"])
	assert.Equal(t, "2024-01-15", m["date"])
	assert.Equal(t, 5.0, m["total"])
	items := m["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Unknown Item", items[0].(map[string]any)["name"])
}

func TestExtractReceiptGarbageFallsBack(t *testing.T) {
	completer := &fakeCompleter{responses: []string{"sorry, the image was unreadable"}}
	e := NewExtractor(completer, 0, nil)

	m := e.ExtractReceipt(context.Background(), "raw ocr")

	assert.Equal(t, "Unknown Vendor", m["vendor"])
	assert.Equal(t, 0.0, m["total"])
	assert.Equal(t, "raw ocr", m["ocr_text"])
}

func TestExtractReceiptCompleterError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream timeout")}
	e := NewExtractor(completer, 0, nil)

	m := e.ExtractReceipt(context.Background(), "raw ocr")

	assert.Equal(t, "Unknown Vendor", m["vendor"])
	assert.Equal(t, "raw ocr", m["ocr_text"])
}

func TestValidateReceiptSubstitutesCorrectedData(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"```json\n{\"valid\": false, \"corrections\": [\"total adjusted to match items\"], \"corrected_data\": {\"vendor\": \"Acme\", \"date\": \"2024-01-15\", \"total\": 22.0}}\n```",
	}}
	e := NewExtractor(completer, 0, nil)

	out := e.ValidateReceipt(context.Background(), map[string]any{
		"vendor": "Acme", "date": "2024-01-15", "total": 27.0,
	})

	assert.Equal(t, 22.0, out["total"])
	verdict, ok := out["validation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, verdict["valid"])
	assert.Equal(t, []string{"total adjusted to match items"}, verdict["corrections"])
}

func TestValidateReceiptNoCorrectionsKeepsData(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"valid": true, "corrections": []}`}}
	e := NewExtractor(completer, 0, nil)

	out := e.ValidateReceipt(context.Background(), map[string]any{
		"vendor": "Acme", "total": 5.0,
	})

	assert.Equal(t, "Acme", out["vendor"])
	assert.Equal(t, 5.0, out["total"])
	verdict := out["validation"].(map[string]any)
	assert.Equal(t, true, verdict["valid"])
	assert.Empty(t, verdict["corrections"])
}

func TestValidateReceiptFailureLeavesDataUnchanged(t *testing.T) {
	data := map[string]any{"vendor": "Acme", "total": 5.0}

	for name, completer := range map[string]*fakeCompleter{
		"completer error":    {err: errors.New("rate limited")},
		"unparsable verdict": {responses: []string{"the receipt looks fine to me"}},
	} {
		t.Run(name, func(t *testing.T) {
			e := NewExtractor(completer, 0, nil)
			out := e.ValidateReceipt(context.Background(), data)
			assert.Equal(t, "Acme", out["vendor"])
			assert.NotContains(t, out, "validation")
		})
	}
}

func TestClassifyExpenses(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`["grocery", "Electronics"]`}}
	e := NewExtractor(completer, 0, nil)

	data := map[string]any{
		"items": []any{
			map[string]any{"name": "milk", "price": 3.0},
			map[string]any{"name": "usb cable", "price": 9.0},
		},
	}
	out := e.ClassifyExpenses(context.Background(), data)

	items := out["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Groceries", items[0].(map[string]any)["category"])
	assert.Equal(t, "Electronics", items[1].(map[string]any)["category"])
}

func TestClassifyExpensesUnknownCategoryMapsToOther(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`["cryptocurrency"]`}}
	e := NewExtractor(completer, 0, nil)

	data := map[string]any{"items": []any{map[string]any{"name": "??"}}}
	out := e.ClassifyExpenses(context.Background(), data)

	assert.Equal(t, "Other", out["items"].([]any)[0].(map[string]any)["category"])
}

func TestClassifyExpensesFailureLeavesDataUnchanged(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	e := NewExtractor(completer, 0, nil)

	data := map[string]any{
		"items": []any{map[string]any{"name": "milk", "price": 3.0}},
	}
	out := e.ClassifyExpenses(context.Background(), data)

	item := out["items"].([]any)[0].(map[string]any)
	assert.NotContains(t, item, "category")
}

func TestClassifyExpensesNoItems(t *testing.T) {
	e := NewExtractor(&fakeCompleter{}, 0, nil)
	data := map[string]any{"vendor": "Acme"}
	assert.Equal(t, data, e.ClassifyExpenses(context.Background(), data))
}

func TestClassifyExpensesMoreCategoriesThanItems(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`["travel", "hotel", "food"]`}}
	e := NewExtractor(completer, 0, nil)

	data := map[string]any{"items": []any{map[string]any{"name": "flight"}}}
	out := e.ClassifyExpenses(context.Background(), data)

	items := out["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Travel", items[0].(map[string]any)["category"])
}

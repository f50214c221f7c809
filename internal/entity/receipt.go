package entity

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// UnknownVendor is the sentinel vendor used whenever extraction could not
// determine a real vendor name.
const UnknownVendor = "Unknown Vendor"

// UnknownItem is the placeholder name for a line item extraction could not
// name.
const UnknownItem = "Unknown Item"

// DefaultCurrency is assumed when extraction yields no currency code.
const DefaultCurrency = "USD"

// ErrInvalidTotal is returned when a receipt is constructed with a
// non-positive total. This is an invariant violation and fails loudly.
var ErrInvalidTotal = errors.New("receipt total must be positive")

// ReceiptItem is a single line item on a receipt.
type ReceiptItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Category string  `json:"category,omitempty"`
}

// LineTotal is the extended price for the line.
func (i ReceiptItem) LineTotal() float64 {
	return i.Price * i.Quantity
}

// Receipt is the canonical receipt record. Instances are built through
// NewReceipt and never mutated afterwards; corrections produce a new
// instance. Persistence is the similarity index's concern.
type Receipt struct {
	Vendor    string        `json:"vendor"`
	Date      time.Time     `json:"date"`
	Items     []ReceiptItem `json:"items"`
	Subtotal  *float64      `json:"subtotal,omitempty"`
	Tax       *float64      `json:"tax,omitempty"`
	Total     float64       `json:"total"`
	Currency  string        `json:"currency"`
	OCRText   string        `json:"ocr_text,omitempty"`
	ImagePath string        `json:"image_path,omitempty"`
}

// NewReceipt validates and normalizes a candidate receipt, returning a fresh
// instance. A non-positive total is rejected; everything else is normalized
// (vendor/date/currency fallbacks). Item quantities are taken as given: an
// explicit zero stays zero, the quantity-absent default lives in
// FromExtraction where absence is distinguishable.
func NewReceipt(r Receipt) (*Receipt, error) {
	if r.Total <= 0 {
		return nil, ErrInvalidTotal
	}
	if strings.TrimSpace(r.Vendor) == "" {
		r.Vendor = UnknownVendor
	}
	if r.Date.IsZero() {
		now := time.Now().UTC()
		r.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	items := make([]ReceiptItem, len(r.Items))
	copy(items, r.Items)
	r.Items = items
	return &r, nil
}

// CalculatedSubtotal recomputes the subtotal from line items. Never stored.
func (r *Receipt) CalculatedSubtotal() float64 {
	var sum float64
	for _, item := range r.Items {
		sum += item.LineTotal()
	}
	return sum
}

// CalculatedTotal recomputes the total from line items plus tax when a tax
// amount is present. An absent tax contributes nothing; so does an explicit
// zero.
func (r *Receipt) CalculatedTotal() float64 {
	total := r.CalculatedSubtotal()
	if r.Tax != nil {
		total += *r.Tax
	}
	return total
}

// FromExtraction builds a Receipt entity from the pre-entity map form the
// extraction step produces. Missing or unparsable fields fall back to
// defaults; the total invariant still applies.
func FromExtraction(data map[string]any) (*Receipt, error) {
	r := Receipt{
		Vendor:   stringField(data, "vendor"),
		Currency: stringField(data, "currency"),
		OCRText:  stringField(data, "ocr_text"),
		Total:    numberField(data, "total", 0),
	}
	if s := stringField(data, "date"); s != "" {
		if d, err := time.Parse("2006-01-02", s); err == nil {
			r.Date = d
		}
	}
	if v, ok := data["subtotal"]; ok && v != nil {
		if f, ok := coerceNumber(v); ok {
			r.Subtotal = &f
		}
	}
	if v, ok := data["tax"]; ok && v != nil {
		if f, ok := coerceNumber(v); ok {
			r.Tax = &f
		}
	}
	if rawItems, ok := data["items"].([]any); ok {
		for _, raw := range rawItems {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			item := ReceiptItem{
				Name:     stringField(m, "name"),
				Price:    numberField(m, "price", 0),
				Quantity: numberField(m, "quantity", 1),
				Category: stringField(m, "category"),
			}
			if item.Name == "" {
				item.Name = UnknownItem
			}
			r.Items = append(r.Items, item)
		}
	}
	return NewReceipt(r)
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func numberField(m map[string]any, key string, fallback float64) float64 {
	if v, ok := m[key]; ok && v != nil {
		if f, ok := coerceNumber(v); ok {
			return f
		}
	}
	return fallback
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

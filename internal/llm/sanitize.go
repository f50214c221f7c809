package llm

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-analyzer/internal/entity"
)

// ExtractJSONBlock pulls the JSON payload out of an LLM response. Fenced
// blocks (```json ... ``` or ``` ... ```) win; otherwise the first
// brace-balanced object found is used; otherwise the whole response is
// returned as the raw JSON candidate.
func ExtractJSONBlock(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx >= 0 {
		rest := response[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(response, "```"); idx >= 0 {
		rest := response[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	if start := strings.IndexAny(response, "{["); start >= 0 {
		if block := balancedBlock(response[start:]); block != "" {
			return block
		}
	}
	return response
}

// balancedBlock returns the prefix of s covering the first balanced JSON
// object or array, tracking string literals so braces inside them don't
// count.
func balancedBlock(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
				if depth == 0 {
					return s[:i+1]
				}
			}
		}
	}
	return ""
}

// receipt shape known keys; anything else the model invents is dropped
var (
	knownReceiptKeys = map[string]bool{
		"vendor": true, "date": true, "items": true, "subtotal": true,
		"tax": true, "total": true, "currency": true, "ocr_text": true,
	}
	knownItemKeys = map[string]bool{
		"name": true, "price": true, "quantity": true, "category": true,
	}
)

// SanitizeExtraction removes null and empty optionals and unknown keys so a
// near-miss document can still validate. Items missing a usable name get the
// placeholder rather than voiding the whole document; the rest of the
// extraction is worth more than the one name. Returns the adjusted key names.
func SanitizeExtraction(m map[string]any) []string {
	var dropped []string
	for k, v := range m {
		if !knownReceiptKeys[k] {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		if v == nil && k != "total" {
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		}
	}
	if items, ok := m["items"].([]any); ok {
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			for k, v := range item {
				if !knownItemKeys[k] {
					delete(item, k)
					dropped = append(dropped, "item."+k+"(unknown)")
					continue
				}
				if v == nil && k != "name" {
					delete(item, k)
					dropped = append(dropped, "item."+k+"(null)")
				}
			}
			if name, ok := item["name"].(string); !ok || name == "" {
				item["name"] = entity.UnknownItem
				dropped = append(dropped, "item.name(defaulted)")
			}
		}
	}
	return dropped
}

// DefaultExtraction is the minimal valid record substituted when extraction
// fails entirely. The raw OCR text is retained for audit and re-embedding.
func DefaultExtraction(ocrText string) map[string]any {
	return map[string]any{
		"vendor":   entity.UnknownVendor,
		"date":     time.Now().UTC().Format("2006-01-02"),
		"items":    []any{},
		"total":    0.0,
		"currency": entity.DefaultCurrency,
		"ocr_text": ocrText,
	}
}

// NormalizeExtraction applies the uniform fallback rules after any parsing
// attempt: sentinel vendor, today's date, total inferred from items when the
// model omitted it, default currency, and the retained OCR text. It is the
// single place extraction defaults live.
func NormalizeExtraction(m map[string]any, ocrText string) map[string]any {
	if v, ok := m["vendor"].(string); !ok || strings.TrimSpace(v) == "" {
		m["vendor"] = entity.UnknownVendor
	}
	if v, ok := m["date"].(string); !ok || strings.TrimSpace(v) == "" {
		m["date"] = time.Now().UTC().Format("2006-01-02")
	}
	if !hasNumeric(m, "total") {
		total := 0.0
		if items, ok := m["items"].([]any); ok {
			for _, raw := range items {
				item, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				price := numericOr(item, "price", 0)
				qty := numericOr(item, "quantity", 1)
				total += price * qty
			}
		}
		m["total"] = total
	}
	if v, ok := m["currency"].(string); !ok || strings.TrimSpace(v) == "" {
		m["currency"] = entity.DefaultCurrency
	}
	if _, ok := m["items"]; !ok {
		m["items"] = []any{}
	}
	m["ocr_text"] = ocrText
	return m
}

func hasNumeric(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	switch v.(type) {
	case float64, float32, int, int64, string:
		return true
	default:
		return false
	}
}

func numericOr(m map[string]any, key string, fallback float64) float64 {
	switch t := m[key].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return fallback
	}
}

// Package validate reconciles a candidate receipt's stated total against a
// total recomputed from its line items and tax.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Tolerance is the absolute margin within which two totals are considered
// equal. It absorbs floating-point rounding in currency units; it is not
// percentage-based, so a $0.02 error on a $10,000 receipt is still flagged.
const Tolerance = 0.01

// Result is the outcome of a single validation call. Produced fresh per
// call, never persisted.
type Result struct {
	IsValid         bool     `json:"is_valid"`
	CalculatedTotal float64  `json:"calculated_total"`
	ReceiptTotal    float64  `json:"receipt_total"`
	Difference      float64  `json:"difference"`
	Corrections     []string `json:"corrections"`
}

// Validator checks receipt arithmetic. Validate is total: it always returns
// a Result, never an error, for any receipt-shaped input.
type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate recomputes the total from items (price defaults to 0, quantity to
// 1 when absent), adds tax when present, and compares against the stated
// total within Tolerance. Malformed numeric input yields an invalid Result
// with an error-description correction instead of propagating.
func (v *Validator) Validate(data map[string]any) Result {
	calculated := 0.0
	if rawItems, ok := data["items"].([]any); ok {
		for i, raw := range rawItems {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			price, err := numericValue(item, "price", 0)
			if err != nil {
				return errorResult(fmt.Sprintf("item %d: %v", i+1, err))
			}
			qty, err := numericValue(item, "quantity", 1)
			if err != nil {
				return errorResult(fmt.Sprintf("item %d: %v", i+1, err))
			}
			if price < 0 {
				v.logger.Warn("validate.negative_price", "item", i+1, "price", price)
			}
			calculated += price * qty
		}
	}

	tax, err := numericValue(data, "tax", 0)
	if err != nil {
		return errorResult(err.Error())
	}
	calculated += tax

	stated, err := numericValue(data, "total", 0)
	if err != nil {
		return errorResult(err.Error())
	}

	difference := math.Abs(calculated - stated)
	result := Result{
		IsValid:         difference < Tolerance,
		CalculatedTotal: calculated,
		ReceiptTotal:    stated,
		Difference:      difference,
		Corrections:     []string{},
	}
	if !result.IsValid {
		result.Corrections = append(result.Corrections, fmt.Sprintf(
			"Total mismatch: Receipt shows %.2f but calculated total is %.2f.",
			stated, calculated,
		))
	}
	return result
}

func errorResult(msg string) Result {
	return Result{
		IsValid:     false,
		Corrections: []string{"Error during validation: " + msg},
	}
}

// numericValue reads a numeric field, tolerating float64, int, json.Number
// style strings, and absence. Present-but-unparsable values are an error;
// absent or null values take the fallback.
func numericValue(m map[string]any, key string, fallback float64) (float64, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch t := raw.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("unparsable value %q for %s", t, key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T for %s", raw, key)
	}
}

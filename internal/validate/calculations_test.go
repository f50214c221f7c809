package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(entries ...map[string]any) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}

func TestValidateMismatch(t *testing.T) {
	v := NewValidator(nil)
	result := v.Validate(map[string]any{
		"items": items(map[string]any{"price": 10.0, "quantity": 2.0}),
		"tax":   2.0,
		"total": 27.0,
	})

	assert.False(t, result.IsValid)
	assert.Equal(t, 22.0, result.CalculatedTotal)
	assert.Equal(t, 27.0, result.ReceiptTotal)
	assert.Equal(t, 5.0, result.Difference)
	require.Len(t, result.Corrections, 1)
	assert.Equal(t,
		"Total mismatch: Receipt shows 27.00 but calculated total is 22.00.",
		result.Corrections[0])
}

func TestValidateMatch(t *testing.T) {
	v := NewValidator(nil)
	result := v.Validate(map[string]any{
		"items": items(map[string]any{"price": 10.0, "quantity": 2.0}),
		"tax":   2.0,
		"total": 22.0,
	})

	assert.True(t, result.IsValid)
	assert.Equal(t, 0.0, result.Difference)
	assert.Empty(t, result.Corrections)
}

func TestValidateWithinTolerance(t *testing.T) {
	v := NewValidator(nil)
	result := v.Validate(map[string]any{
		"items": items(map[string]any{"price": 10.004, "quantity": 1.0}),
		"total": 10.0,
	})
	assert.True(t, result.IsValid)
}

func TestValidateAbsoluteToleranceNotRelative(t *testing.T) {
	// a two-cent error on a large receipt is still flagged
	v := NewValidator(nil)
	result := v.Validate(map[string]any{
		"items": items(map[string]any{"price": 10000.02, "quantity": 1.0}),
		"total": 10000.0,
	})
	assert.False(t, result.IsValid)
	assert.InDelta(t, 0.02, result.Difference, 1e-6)
}

func TestValidateMissingTax(t *testing.T) {
	v := NewValidator(nil)

	withoutTax := v.Validate(map[string]any{
		"items": items(map[string]any{"price": 5.0, "quantity": 2.0}),
		"total": 10.0,
	})
	withZeroTax := v.Validate(map[string]any{
		"items": items(map[string]any{"price": 5.0, "quantity": 2.0}),
		"tax":   0.0,
		"total": 10.0,
	})

	assert.True(t, withoutTax.IsValid)
	assert.True(t, withZeroTax.IsValid)
	assert.Equal(t, withoutTax.CalculatedTotal, withZeroTax.CalculatedTotal)
}

func TestValidateDefaults(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		name string
		data map[string]any
		want Result
	}{
		{
			name: "missing quantity defaults to 1",
			data: map[string]any{
				"items": items(map[string]any{"price": 7.5}),
				"total": 7.5,
			},
			want: Result{IsValid: true, CalculatedTotal: 7.5, ReceiptTotal: 7.5},
		},
		{
			name: "missing price defaults to 0",
			data: map[string]any{
				"items": items(map[string]any{"quantity": 3.0}),
				"total": 0.0,
			},
			want: Result{IsValid: true},
		},
		{
			name: "missing total treated as 0",
			data: map[string]any{
				"items": items(map[string]any{"price": 2.0, "quantity": 1.0}),
			},
			want: Result{IsValid: false, CalculatedTotal: 2.0, Difference: 2.0},
		},
		{
			name: "no items at all",
			data: map[string]any{"total": 0.0},
			want: Result{IsValid: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.data)
			assert.Equal(t, tt.want.IsValid, got.IsValid)
			assert.Equal(t, tt.want.CalculatedTotal, got.CalculatedTotal)
			assert.Equal(t, tt.want.ReceiptTotal, got.ReceiptTotal)
			assert.Equal(t, tt.want.Difference, got.Difference)
		})
	}
}

func TestValidateNumericStrings(t *testing.T) {
	v := NewValidator(nil)
	result := v.Validate(map[string]any{
		"items": items(map[string]any{"price": "10.00", "quantity": "2"}),
		"tax":   "1.50",
		"total": "21.50",
	})
	assert.True(t, result.IsValid)
}

func TestValidateMalformedInput(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		name string
		data map[string]any
	}{
		{"garbage total", map[string]any{"total": "not-a-number"}},
		{"garbage tax", map[string]any{"tax": "??", "total": 5.0}},
		{"garbage item price", map[string]any{
			"items": items(map[string]any{"price": "abc"}),
			"total": 5.0,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.data)
			assert.False(t, result.IsValid)
			require.Len(t, result.Corrections, 1)
			assert.Contains(t, result.Corrections[0], "Error during validation")
		})
	}
}

func TestValidateIsTotal(t *testing.T) {
	// arbitrary receipt-shaped junk never panics
	v := NewValidator(nil)
	inputs := []map[string]any{
		nil,
		{},
		{"items": "not-a-list", "total": true},
		{"items": items(nil, map[string]any{}), "total": 0.0},
	}
	for i, data := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			assert.NotPanics(t, func() { v.Validate(data) })
		})
	}
}

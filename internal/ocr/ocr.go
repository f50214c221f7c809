// Package ocr talks to the external OCR provider. The provider is a thin
// network collaborator: no text is a valid (if unhelpful) result, a failed
// call is a distinguishable error.
package ocr

import (
	"context"
	"time"
)

// Result summarizes one OCR extraction.
type Result struct {
	Text     string
	Duration time.Duration
}

// TextExtractor is the contract the pipeline depends on.
type TextExtractor interface {
	Extract(ctx context.Context, imagePath string) (Result, error)
}

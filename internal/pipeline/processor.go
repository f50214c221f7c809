// Package pipeline sequences OCR, extraction, validation, indexing and
// retrieval into the two processing entry points: the direct synchronous
// Process path and the plan-driven Analyze path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-analyzer/internal/entity"
	"github.com/joseph-ayodele/receipt-analyzer/internal/history"
	"github.com/joseph-ayodele/receipt-analyzer/internal/index"
	"github.com/joseph-ayodele/receipt-analyzer/internal/ocr"
	"github.com/joseph-ayodele/receipt-analyzer/internal/validate"
)

// Result is the aggregate outcome both entry points produce. The field set
// is identical for both paths so callers can pattern-match without knowing
// which path ran; fields an Analyze plan skipped stay zero-valued.
type Result struct {
	Success         bool             `json:"success"`
	ReceiptID       string           `json:"receipt_id,omitempty"`
	ReceiptData     map[string]any   `json:"receipt_data"`
	Validation      *validate.Result `json:"validation"`
	SimilarReceipts []index.Match    `json:"similar_receipts"`
	VendorHistory   *history.Summary `json:"vendor_history"`
	Error           string           `json:"error,omitempty"`
}

// Extractor is the slice of the LLM layer the pipeline needs.
type Extractor interface {
	ExtractReceipt(ctx context.Context, ocrText string) map[string]any
	ClassifyExpenses(ctx context.Context, data map[string]any) map[string]any
	ValidateReceipt(ctx context.Context, data map[string]any) map[string]any
}

// Indexer is the slice of the similarity index the pipeline needs.
type Indexer interface {
	Ingest(ctx context.Context, r *entity.Receipt) (string, error)
	QuerySimilar(ctx context.Context, query string, limit int) []index.Match
}

// Historian produces vendor history summaries.
type Historian interface {
	History(ctx context.Context, vendor string) history.Summary
}

// Processor wires the collaborators together.
type Processor struct {
	ocr          ocr.TextExtractor
	extractor    Extractor
	validator    *validate.Validator
	indexer      Indexer
	historian    Historian
	planner      Planner
	stageTimeout time.Duration
	logger       *slog.Logger
}

func NewProcessor(
	textExtractor ocr.TextExtractor,
	extractor Extractor,
	validator *validate.Validator,
	indexer Indexer,
	historian Historian,
	planner Planner,
	stageTimeout time.Duration,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if stageTimeout <= 0 {
		stageTimeout = 60 * time.Second
	}
	return &Processor{
		ocr:          textExtractor,
		extractor:    extractor,
		validator:    validator,
		indexer:      indexer,
		historian:    historian,
		planner:      planner,
		stageTimeout: stageTimeout,
		logger:       logger,
	}
}

// Process runs the direct synchronous path: OCR → extract → classify →
// model consistency check → arithmetic validate → entity → ingest → similar
// lookup seeded by vendor → vendor history. Any stage failure fails the whole
// call; partial results are not preserved.
func (p *Processor) Process(ctx context.Context, imagePath string) Result {
	p.logger.Info("pipeline.process.start", "image_path", imagePath)

	data, receiptID, rec, validation, err := p.extractAndIngest(ctx, imagePath)
	if err != nil {
		p.logger.Error("pipeline.process.failed", "image_path", imagePath, "error", err)
		return Result{Success: false, Error: err.Error()}
	}

	stageCtx, cancel := p.stage(ctx)
	similar := p.indexer.QuerySimilar(stageCtx, "Vendor: "+rec.Vendor, 3)
	cancel()

	stageCtx, cancel = p.stage(ctx)
	summary := p.historian.History(stageCtx, rec.Vendor)
	cancel()

	p.logger.Info("pipeline.process.ok",
		"image_path", imagePath,
		"receipt_id", receiptID,
		"vendor", rec.Vendor,
		"valid", validation.IsValid,
	)
	return Result{
		Success:         true,
		ReceiptID:       receiptID,
		ReceiptData:     data,
		Validation:      validation,
		SimilarReceipts: similar,
		VendorHistory:   &summary,
	}
}

// extractAndIngest is the shared front half of both paths: it produces the
// extraction map (with receipt_id merged in), the ingested entity and its
// validation. Entity construction failure (non-positive total) propagates;
// that is the one invariant that fails loudly.
func (p *Processor) extractAndIngest(ctx context.Context, imagePath string) (map[string]any, string, *entity.Receipt, *validate.Result, error) {
	stageCtx, cancel := p.stage(ctx)
	ocrRes, err := p.ocr.Extract(stageCtx, imagePath)
	cancel()
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("ocr: %w", err)
	}
	p.logger.Debug("pipeline.ocr.ok", "image_path", imagePath, "text_len", len(ocrRes.Text))

	stageCtx, cancel = p.stage(ctx)
	data := p.extractor.ExtractReceipt(stageCtx, ocrRes.Text)
	data = p.extractor.ClassifyExpenses(stageCtx, data)
	data = p.extractor.ValidateReceipt(stageCtx, data)
	cancel()

	validation := p.validator.Validate(data)
	p.logger.Debug("pipeline.validate.ok", "valid", validation.IsValid, "difference", validation.Difference)

	rec, err := entity.FromExtraction(data)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("construct receipt: %w", err)
	}
	rec.ImagePath = imagePath

	stageCtx, cancel = p.stage(ctx)
	receiptID, err := p.indexer.Ingest(stageCtx, rec)
	cancel()
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("ingest: %w", err)
	}
	data["receipt_id"] = receiptID

	return data, receiptID, rec, &validation, nil
}

func (p *Processor) stage(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.stageTimeout)
}

// Package index embeds receipts and makes them retrievable by semantic
// similarity and by vendor. The store is append-only: duplicate ingests of
// identical content produce distinct ids, no deduplication is performed.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-analyzer/internal/common"
	"github.com/joseph-ayodele/receipt-analyzer/internal/embed"
	"github.com/joseph-ayodele/receipt-analyzer/internal/entity"
)

// VendorMatch selects how vendor search matches records.
type VendorMatch string

const (
	// VendorExact filters on exact vendor equality in the backend.
	VendorExact VendorMatch = "exact"
	// VendorSemantic runs a similarity query biased toward the vendor name.
	// It tolerates fuzzy vendor spellings at a precision cost.
	VendorSemantic VendorMatch = "semantic"
)

// Match is one retrieval result: the filterable metadata, the similarity
// score (1.0 for exact-filter results), and the recovered receipt snapshot.
type Match struct {
	ReceiptID string          `json:"receipt_id"`
	Vendor    string          `json:"vendor"`
	Date      string          `json:"date,omitempty"`
	Total     float64         `json:"total"`
	Currency  string          `json:"currency,omitempty"`
	Score     float64         `json:"score"`
	Receipt   *entity.Receipt `json:"receipt_data,omitempty"`
}

// SimilarityIndex ties an embedding provider to a vector backend.
type SimilarityIndex struct {
	backend  Backend
	embedder embed.Provider
	cfg      common.IndexConfig
	logger   *slog.Logger
}

func New(backend Backend, embedder embed.Provider, cfg common.IndexConfig, logger *slog.Logger) *SimilarityIndex {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SimilarTopK <= 0 {
		cfg.SimilarTopK = 5
	}
	if cfg.VendorTopK <= 0 {
		cfg.VendorTopK = 10
	}
	return &SimilarityIndex{backend: backend, embedder: embedder, cfg: cfg, logger: logger}
}

// ReceiptText builds the searchable text representation a receipt is
// embedded over. The ordering is stable: vendor, date, total+currency,
// items, optional subtotal, optional tax, repeated total, raw OCR text.
func ReceiptText(r *entity.Receipt) string {
	lines := []string{
		"Vendor: " + r.Vendor,
		"Date: " + r.Date.Format("2006-01-02"),
		fmt.Sprintf("Total: %s %s", formatAmount(r.Total), r.Currency),
		"Items:",
	}

	for _, item := range r.Items {
		line := fmt.Sprintf("- %s: %s x %s = %s",
			item.Name, formatAmount(item.Quantity), formatAmount(item.Price), formatAmount(item.LineTotal()))
		if item.Category != "" {
			line += fmt.Sprintf(" (Category: %s)", item.Category)
		}
		lines = append(lines, line)
	}

	if r.Subtotal != nil && *r.Subtotal != 0 {
		lines = append(lines, "Subtotal: "+formatAmount(*r.Subtotal))
	}
	if r.Tax != nil && *r.Tax != 0 {
		lines = append(lines, "Tax: "+formatAmount(*r.Tax))
	}
	lines = append(lines, "Total: "+formatAmount(r.Total))

	if r.OCRText != "" {
		lines = append(lines, "", "Original Text:", r.OCRText)
	}

	return strings.Join(lines, "\n")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Ingest embeds the receipt's text representation and stores it with a
// fresh unique id. Failure is returned to the caller: an ingest must never
// silently drop data.
func (ix *SimilarityIndex) Ingest(ctx context.Context, r *entity.Receipt) (string, error) {
	text := ReceiptText(r)
	vectors, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", common.WrapError(err, "embed receipt")
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("embedding provider returned no vector")
	}

	receiptID := uuid.New().String()
	snapshot, err := json.Marshal(r)
	if err != nil {
		return "", common.WrapError(err, "marshal receipt snapshot")
	}

	rec := Record{
		ReceiptID:   receiptID,
		Vendor:      r.Vendor,
		Date:        r.Date.Format("2006-01-02"),
		Total:       r.Total,
		Currency:    r.Currency,
		ItemsCount:  len(r.Items),
		ReceiptJSON: snapshot,
		Embedding:   vectors[0],
	}
	if err := ix.backend.Upsert(ctx, rec); err != nil {
		return "", common.WrapError(err, "store receipt")
	}

	ix.logger.Info("index.ingest.ok",
		"receipt_id", receiptID,
		"vendor", r.Vendor,
		"items", len(r.Items),
		"text_len", len(text),
	)
	return receiptID, nil
}

// QuerySimilar returns up to limit records nearest to the free-text query,
// descending by relevance. It never fails: backend trouble is logged and an
// empty result returned, because callers treat "no similar receipts" as
// valid, not exceptional.
func (ix *SimilarityIndex) QuerySimilar(ctx context.Context, query string, limit int) []Match {
	if limit <= 0 {
		limit = ix.cfg.SimilarTopK
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		ix.logger.Error("index.query.embed_failed", "error", err)
		return []Match{}
	}

	scored, err := ix.backend.Query(ctx, vectors[0], limit)
	if err != nil {
		ix.logger.Error("index.query.failed", "error", err)
		return []Match{}
	}

	matches := make([]Match, 0, len(scored))
	for _, s := range scored {
		m, ok := ix.toMatch(s.Record, s.Score)
		if !ok {
			continue
		}
		matches = append(matches, m)
	}
	ix.logger.Info("index.query.ok", "query_len", len(query), "results", len(matches))
	return matches
}

// QueryByVendor returns a vendor's records, newest first for exact mode,
// by relevance for semantic mode. Total like QuerySimilar.
func (ix *SimilarityIndex) QueryByVendor(ctx context.Context, vendor string, limit int, mode VendorMatch) []Match {
	if limit <= 0 {
		limit = ix.cfg.VendorTopK
	}
	if mode == VendorSemantic {
		return ix.QuerySimilar(ctx, "Vendor: "+vendor, limit)
	}

	records, err := ix.backend.QueryByVendor(ctx, vendor, limit)
	if err != nil {
		ix.logger.Error("index.vendor_query.failed", "vendor", vendor, "error", err)
		return []Match{}
	}

	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		m, ok := ix.toMatch(rec, 1.0)
		if !ok {
			continue
		}
		matches = append(matches, m)
	}
	return matches
}

// GetByID is a point lookup against the backend's primary key. Returns nil
// when absent or on backend failure.
func (ix *SimilarityIndex) GetByID(ctx context.Context, receiptID string) *Match {
	rec, err := ix.backend.Get(ctx, receiptID)
	if err != nil {
		ix.logger.Error("index.get.failed", "receipt_id", receiptID, "error", err)
		return nil
	}
	if rec == nil {
		ix.logger.Warn("index.get.not_found", "receipt_id", receiptID)
		return nil
	}
	m, ok := ix.toMatch(*rec, 1.0)
	if !ok {
		return nil
	}
	return &m
}

func (ix *SimilarityIndex) toMatch(rec Record, score float64) (Match, bool) {
	var snapshot entity.Receipt
	if err := json.Unmarshal(rec.ReceiptJSON, &snapshot); err != nil {
		ix.logger.Warn("index.decode_snapshot_failed", "receipt_id", rec.ReceiptID, "error", err)
		return Match{}, false
	}
	return Match{
		ReceiptID: rec.ReceiptID,
		Vendor:    rec.Vendor,
		Date:      rec.Date,
		Total:     rec.Total,
		Currency:  rec.Currency,
		Score:     score,
		Receipt:   &snapshot,
	}, true
}

package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/receipt-analyzer/internal/common"
)

// Record is what a backend stores per ingested receipt. Metadata carries a
// fully recoverable snapshot of the receipt next to the filterable fields.
type Record struct {
	ReceiptID   string
	Vendor      string
	Date        string // YYYY-MM-DD, empty when unknown
	Total       float64
	Currency    string
	ItemsCount  int
	ReceiptJSON []byte
	Embedding   []float32 // populated on writes; backends may omit it on reads
}

// ScoredRecord is a Record with its similarity score, higher is better.
type ScoredRecord struct {
	Record
	Score float64
}

// Backend is the vector store the similarity index runs on. Records are
// append-only from the index's point of view; Delete is part of the contract
// for completeness but nothing in the pipeline calls it.
type Backend interface {
	Upsert(ctx context.Context, rec Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)
	// QueryByVendor filters on exact vendor equality, newest first.
	QueryByVendor(ctx context.Context, vendor string, topK int) ([]Record, error)
	// Get returns nil when the id is absent.
	Get(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewBackend builds the configured backend.
func NewBackend(ctx context.Context, cfg common.IndexConfig, dim int, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "pgvector":
		return NewPgvectorBackend(ctx, cfg, dim, logger)
	case "sqlite", "":
		return NewSQLiteBackend(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

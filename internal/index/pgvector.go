package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/receipt-analyzer/internal/common"
)

// PgvectorBackend stores records in Postgres with the pgvector extension and
// ranks by cosine distance in SQL.
type PgvectorBackend struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

func NewPgvectorBackend(ctx context.Context, cfg common.IndexConfig, dim int, logger *slog.Logger) (*PgvectorBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse index dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.ConnConfig.RuntimeParams["application_name"] = "receipt-analyzer"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect index database: %w", err)
	}

	schema := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS receipt_index (
	receipt_id   TEXT PRIMARY KEY,
	vendor       TEXT NOT NULL,
	tx_date      TEXT NOT NULL DEFAULT '',
	total        DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency     TEXT NOT NULL DEFAULT '',
	items_count  INT NOT NULL DEFAULT 0,
	receipt_json JSONB NOT NULL,
	embedding    VECTOR(%d) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_receipt_index_vendor ON receipt_index (vendor);`, dim)
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create receipt_index schema: %w", err)
	}

	logger.Info("index.pgvector.open", "dim", dim)
	return &PgvectorBackend{pool: pool, dim: dim, logger: logger}, nil
}

func (b *PgvectorBackend) Upsert(ctx context.Context, rec Record) error {
	_, err := b.pool.Exec(ctx, `
INSERT INTO receipt_index (receipt_id, vendor, tx_date, total, currency, items_count, receipt_json, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
ON CONFLICT (receipt_id) DO UPDATE SET
	vendor = EXCLUDED.vendor,
	tx_date = EXCLUDED.tx_date,
	total = EXCLUDED.total,
	currency = EXCLUDED.currency,
	items_count = EXCLUDED.items_count,
	receipt_json = EXCLUDED.receipt_json,
	embedding = EXCLUDED.embedding`,
		rec.ReceiptID, rec.Vendor, rec.Date, rec.Total, rec.Currency,
		rec.ItemsCount, string(rec.ReceiptJSON), ToLiteral(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ReceiptID, err)
	}
	return nil
}

func (b *PgvectorBackend) Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	start := time.Now()
	rows, err := b.pool.Query(ctx, `
SELECT receipt_id, vendor, tx_date, total, currency, items_count, receipt_json,
       1 - (embedding <=> $1::vector) AS score
FROM receipt_index
ORDER BY embedding <=> $1::vector
LIMIT $2`, ToLiteral(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	scored, err := scanScored(rows)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("index.pgvector.query",
		"top_k", topK,
		"results", len(scored),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return scored, nil
}

func (b *PgvectorBackend) QueryByVendor(ctx context.Context, vendor string, topK int) ([]Record, error) {
	rows, err := b.pool.Query(ctx, `
SELECT receipt_id, vendor, tx_date, total, currency, items_count, receipt_json
FROM receipt_index
WHERE vendor = $1
ORDER BY tx_date DESC
LIMIT $2`, vendor, topK)
	if err != nil {
		return nil, fmt.Errorf("query by vendor: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (b *PgvectorBackend) Get(ctx context.Context, id string) (*Record, error) {
	rows, err := b.pool.Query(ctx, `
SELECT receipt_id, vendor, tx_date, total, currency, items_count, receipt_json
FROM receipt_index
WHERE receipt_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *PgvectorBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.pool.Exec(ctx,
		`DELETE FROM receipt_index WHERE receipt_id = $1`, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

func (b *PgvectorBackend) Close() error {
	b.pool.Close()
	return nil
}

func scanRecord(rows pgx.Rows) (Record, error) {
	var rec Record
	var jsonText string
	if err := rows.Scan(&rec.ReceiptID, &rec.Vendor, &rec.Date, &rec.Total,
		&rec.Currency, &rec.ItemsCount, &jsonText); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.ReceiptJSON = []byte(jsonText)
	return rec, nil
}

func scanScored(rows pgx.Rows) ([]ScoredRecord, error) {
	var scored []ScoredRecord
	for rows.Next() {
		var rec Record
		var jsonText string
		var score float64
		if err := rows.Scan(&rec.ReceiptID, &rec.Vendor, &rec.Date, &rec.Total,
			&rec.Currency, &rec.ItemsCount, &jsonText, &score); err != nil {
			return nil, fmt.Errorf("scan scored record: %w", err)
		}
		rec.ReceiptJSON = []byte(jsonText)
		scored = append(scored, ScoredRecord{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return scored, nil
}

// ToLiteral renders a vector as a pgvector literal.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

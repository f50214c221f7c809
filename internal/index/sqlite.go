package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores embeddings and metadata in an embedded sqlite
// database and ranks by brute-force cosine scan. It serves single-user and
// offline deployments; pgvector is the server-grade backend.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteBackend(dsn string, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent ingest.
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS receipt_index (
	receipt_id  TEXT PRIMARY KEY,
	vendor      TEXT NOT NULL,
	tx_date     TEXT NOT NULL DEFAULT '',
	total       REAL NOT NULL DEFAULT 0,
	currency    TEXT NOT NULL DEFAULT '',
	items_count INTEGER NOT NULL DEFAULT 0,
	receipt_json TEXT NOT NULL,
	embedding   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipt_index_vendor ON receipt_index (vendor);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create receipt_index schema: %w", err)
	}

	logger.Info("index.sqlite.open", "dsn", dsn)
	return &SQLiteBackend{db: db, logger: logger}, nil
}

func (b *SQLiteBackend) Upsert(ctx context.Context, rec Record) error {
	_, err := b.db.ExecContext(ctx, `
INSERT INTO receipt_index (receipt_id, vendor, tx_date, total, currency, items_count, receipt_json, embedding)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(receipt_id) DO UPDATE SET
	vendor = excluded.vendor,
	tx_date = excluded.tx_date,
	total = excluded.total,
	currency = excluded.currency,
	items_count = excluded.items_count,
	receipt_json = excluded.receipt_json,
	embedding = excluded.embedding`,
		rec.ReceiptID, rec.Vendor, rec.Date, rec.Total, rec.Currency,
		rec.ItemsCount, string(rec.ReceiptJSON), encodeVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ReceiptID, err)
	}
	return nil
}

func (b *SQLiteBackend) Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	rows, err := b.db.QueryContext(ctx, `
SELECT receipt_id, vendor, tx_date, total, currency, items_count, receipt_json, embedding
FROM receipt_index`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var scored []ScoredRecord
	for rows.Next() {
		var rec Record
		var jsonText string
		var blob []byte
		if err := rows.Scan(&rec.ReceiptID, &rec.Vendor, &rec.Date, &rec.Total,
			&rec.Currency, &rec.ItemsCount, &jsonText, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ReceiptJSON = []byte(jsonText)
		scored = append(scored, ScoredRecord{
			Record: rec,
			Score:  cosineSimilarity(vector, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (b *SQLiteBackend) QueryByVendor(ctx context.Context, vendor string, topK int) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx, `
SELECT receipt_id, vendor, tx_date, total, currency, items_count, receipt_json
FROM receipt_index
WHERE vendor = ?
ORDER BY tx_date DESC
LIMIT ?`, vendor, topK)
	if err != nil {
		return nil, fmt.Errorf("query by vendor: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var jsonText string
		if err := rows.Scan(&rec.ReceiptID, &rec.Vendor, &rec.Date, &rec.Total,
			&rec.Currency, &rec.ItemsCount, &jsonText); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.ReceiptJSON = []byte(jsonText)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (b *SQLiteBackend) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	var jsonText string
	err := b.db.QueryRowContext(ctx, `
SELECT receipt_id, vendor, tx_date, total, currency, items_count, receipt_json
FROM receipt_index
WHERE receipt_id = ?`, id).Scan(&rec.ReceiptID, &rec.Vendor, &rec.Date,
		&rec.Total, &rec.Currency, &rec.ItemsCount, &jsonText)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	rec.ReceiptJSON = []byte(jsonText)
	return &rec, nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx,
		`DELETE FROM receipt_index WHERE receipt_id = ?`, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

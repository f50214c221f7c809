// Package history aggregates a vendor's receipts from the similarity index.
// Summaries are recomputed on every call, never cached.
package history

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/receipt-analyzer/internal/index"
)

// Summary describes a vendor's purchase history. FirstPurchase and
// LastPurchase are nil when none of the matched receipts carry a date.
type Summary struct {
	Vendor        string        `json:"vendor"`
	ReceiptCount  int           `json:"receipt_count"`
	TotalSpent    float64       `json:"total_spent"`
	FirstPurchase *string       `json:"first_purchase"`
	LastPurchase  *string       `json:"last_purchase"`
	Receipts      []index.Match `json:"receipts"`
}

// Searcher is the slice of the similarity index the aggregator needs.
type Searcher interface {
	QueryByVendor(ctx context.Context, vendor string, limit int, mode index.VendorMatch) []index.Match
}

// Aggregator computes vendor history summaries. History is total: any
// retrieval trouble yields a zero-valued summary, because vendor history
// must always be renderable.
type Aggregator struct {
	searcher Searcher
	limit    int
	mode     index.VendorMatch
	logger   *slog.Logger
}

func NewAggregator(searcher Searcher, limit int, mode index.VendorMatch, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 10
	}
	if mode == "" {
		mode = index.VendorExact
	}
	return &Aggregator{searcher: searcher, limit: limit, mode: mode, logger: logger}
}

// History fetches the vendor's receipts and reports count, total spend and
// the first/last purchase dates. Receipts without a date still count toward
// ReceiptCount but are excluded from the date range.
func (a *Aggregator) History(ctx context.Context, vendor string) Summary {
	matches := a.searcher.QueryByVendor(ctx, vendor, a.limit, a.mode)

	summary := Summary{
		Vendor:   vendor,
		Receipts: matches,
	}
	if summary.Receipts == nil {
		summary.Receipts = []index.Match{}
	}
	summary.ReceiptCount = len(matches)

	for _, m := range matches {
		summary.TotalSpent += m.Total
		if m.Date == "" {
			continue
		}
		date := m.Date
		if summary.FirstPurchase == nil || date < *summary.FirstPurchase {
			d := date
			summary.FirstPurchase = &d
		}
		if summary.LastPurchase == nil || date > *summary.LastPurchase {
			d := date
			summary.LastPurchase = &d
		}
	}

	a.logger.Info("history.ok",
		"vendor", vendor,
		"receipt_count", summary.ReceiptCount,
		"total_spent", summary.TotalSpent,
	)
	return summary
}

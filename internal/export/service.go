package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-analyzer/internal/history"
)

// Historian produces the vendor summary the export is built from.
type Historian interface {
	History(ctx context.Context, vendor string) history.Summary
}

// Service is a tiny façade over the history aggregator that produces XLSX
// bytes for exports.
type Service struct {
	historian Historian
	logger    *slog.Logger
}

func NewService(historian Historian, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{historian: historian, logger: logger}
}

// ExportVendorHistoryXLSX returns an XLSX workbook (as bytes) with one row
// per receipt in the vendor's history plus a summary row.
func (s *Service) ExportVendorHistoryXLSX(ctx context.Context, vendor string) ([]byte, error) {
	start := time.Now()
	summary := s.historian.History(ctx, vendor)

	f := excelize.NewFile()
	const sheet = "Vendor History"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Receipt ID",
		"Vendor",
		"Date",
		"Total",
		"Currency",
		"Items",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, m := range summary.Receipts {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, m.ReceiptID)
		write(2, m.Vendor)
		write(3, m.Date)
		write(4, m.Total)
		write(5, m.Currency)
		if m.Receipt != nil {
			write(6, len(m.Receipt.Items))
		}
		row++
	}

	// summary row below the receipts
	row++
	totalsCell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetCellValue(sheet, totalsCell, fmt.Sprintf("%d receipts, %.2f total spent", summary.ReceiptCount, summary.TotalSpent))

	// drop the default sheet excelize creates
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.vendor_history.ok",
		"vendor", vendor,
		"rows", summary.ReceiptCount,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

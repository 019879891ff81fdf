package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"loyalty/models"
)

// Source is the query the report needs from the repository.
type Source interface {
	ReceiptsProcessedBetween(ctx context.Context, from, to time.Time) ([]models.Receipt, error)
}

// StoreSummary aggregates one store's receipts. Receipts without a store
// (unresolved uploads) are grouped under StoreID nil.
type StoreSummary struct {
	StoreID        *uint
	StoreName      string
	ByStatus       map[string]int
	Total          int
	ApprovedAmount decimal.Decimal
}

type Report struct {
	Month    string
	Start    time.Time
	End      time.Time
	Stores   []StoreSummary
	Receipts []models.Receipt
}

// MonthRange parses YYYY-MM into the UTC half-open range [start, end).
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Build loads the month's receipts and summarizes them per store.
func Build(ctx context.Context, src Source, month string) (*Report, error) {
	start, end, err := MonthRange(month)
	if err != nil {
		return nil, err
	}
	rows, err := src.ReceiptsProcessedBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	return &Report{Month: month, Start: start, End: end, Stores: Summarize(rows), Receipts: rows}, nil
}

// Summarize groups receipts by store, ordered by store ID with the
// storeless group last.
func Summarize(rows []models.Receipt) []StoreSummary {
	byKey := map[uint]*StoreSummary{}
	var order []uint
	const noStore = 0
	for _, r := range rows {
		key := uint(noStore)
		if r.StoreID != nil {
			key = *r.StoreID
		}
		s, ok := byKey[key]
		if !ok {
			s = &StoreSummary{ByStatus: map[string]int{}, StoreName: "(no store)"}
			if r.StoreID != nil {
				id := *r.StoreID
				s.StoreID = &id
				s.StoreName = fmt.Sprintf("store %d", id)
			}
			byKey[key] = s
			order = append(order, key)
		}
		if r.Store != nil {
			s.StoreName = storeLabel(r.Store)
		}
		s.Total++
		s.ByStatus[r.Status]++
		if r.Status == models.ReceiptApproved && r.TotalAmount.Valid {
			s.ApprovedAmount = s.ApprovedAmount.Add(r.TotalAmount.Decimal)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i] == noStore || order[j] == noStore {
			return order[j] == noStore && order[i] != noStore
		}
		return order[i] < order[j]
	})
	out := make([]StoreSummary, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}

func storeLabel(s *models.Store) string {
	if s.Branch == "" {
		return s.Name
	}
	return s.Name + " - " + s.Branch
}

var statusColumns = []string{
	models.ReceiptApproved,
	models.ReceiptRejected,
	models.ReceiptFlagged,
	models.ReceiptFlaggedManualRequested,
	models.ReceiptNeedsStoreSelection,
	models.ReceiptPending,
}

// Print writes the summary and, when list is set, one line per receipt.
func (r *Report) Print(w io.Writer, list bool) {
	fmt.Fprintf(w, "Receipt report month=%s (UTC)\n", r.Month)
	for _, s := range r.Stores {
		parts := make([]string, 0, len(statusColumns))
		for _, st := range statusColumns {
			if n := s.ByStatus[st]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", st, n))
			}
		}
		fmt.Fprintf(w, "  %s: receipts=%d %s approved_amount=%s\n", s.StoreName, s.Total, strings.Join(parts, " "), s.ApprovedAmount.StringFixed(2))
	}
	if !list {
		return
	}
	for _, rc := range r.Receipts {
		fmt.Fprintf(w, "%d|%s|%s|%s|%s\n", rc.ID, rc.Status, deref(rc.InvoiceNo), amount(rc), rc.ProcessedAt.Format(time.RFC3339))
	}
}

// XLSX renders the report as a workbook with a Summary and a Receipts sheet.
func (r *Report) XLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	headers := append([]interface{}{"Store", "Receipts"}, toIfaces(statusColumns)...)
	headers = append(headers, "Approved Amount")
	if err := f.SetSheetRow(summary, "A1", &headers); err != nil {
		return nil, err
	}
	for i, s := range r.Stores {
		row := []interface{}{s.StoreName, s.Total}
		for _, st := range statusColumns {
			row = append(row, s.ByStatus[st])
		}
		row = append(row, s.ApprovedAmount.InexactFloat64())
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(summary, "A", "A", 32)

	const detail = "Receipts"
	if _, err := f.NewSheet(detail); err != nil {
		return nil, err
	}
	cols := []interface{}{"ID", "Processed At", "Store ID", "Status", "Reason", "TIN", "Invoice No", "Date On Receipt", "Total", "Fraud Score", "Phone"}
	if err := f.SetSheetRow(detail, "A1", &cols); err != nil {
		return nil, err
	}
	for i, rc := range r.Receipts {
		storeID := ""
		if rc.StoreID != nil {
			storeID = fmt.Sprint(*rc.StoreID)
		}
		date := ""
		if rc.DateOnReceipt != nil {
			date = rc.DateOnReceipt.Format("2006-01-02")
		}
		row := []interface{}{
			rc.ID, rc.ProcessedAt.Format(time.RFC3339), storeID, rc.Status, rc.Reason,
			rc.TIN, deref(rc.InvoiceNo), date, amount(rc), rc.FraudScore, deref(rc.CustomerPhone),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(detail, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(detail, "B", "B", 22)
	_ = f.SetColWidth(detail, "E", "E", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func toIfaces(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func amount(rc models.Receipt) string {
	if !rc.TotalAmount.Valid {
		return ""
	}
	return rc.TotalAmount.Decimal.StringFixed(2)
}

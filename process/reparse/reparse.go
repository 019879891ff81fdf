// Package reparse re-runs the receipt parser over stored OCR text and fills
// extracted fields that earlier parser versions missed. Only empty fields
// are written; decisions and statuses are never changed.
package reparse

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/parser"
)

// DefaultStatuses are the receipts a reviewer still has to look at.
var DefaultStatuses = []string{models.ReceiptFlagged, models.ReceiptFlaggedManualRequested, models.ReceiptPending}

type Repository interface {
	ReceiptsProcessedBetween(ctx context.Context, from, to time.Time) ([]models.Receipt, error)
	UpdateReceiptIf(ctx context.Context, id uint, from []string, updates map[string]interface{}) (bool, error)
}

type Options struct {
	From, To time.Time
	Statuses []string
	// DryRun prints the proposed changes without writing them.
	DryRun bool
}

type Summary struct {
	Scanned int
	Changed int
	Skipped int
}

// Changes returns the column updates that fill rc's empty fields from p.
func Changes(rc models.Receipt, p parser.ParsedReceipt) map[string]interface{} {
	up := map[string]interface{}{}
	if rc.TIN == "" && p.TIN != "" {
		up["tin"] = p.TIN
	}
	if !rc.TotalAmount.Valid && p.TotalAmount.Valid {
		up["total_amount"] = p.TotalAmount
	}
	if rc.DateOnReceipt == nil && p.Date != nil {
		up["date_on_receipt"] = *p.Date
	}
	if rc.BranchText == "" && p.BranchText != "" {
		up["branch_text"] = p.BranchText
	}
	return up
}

// Run reparses every matching receipt and writes one line per change to w.
func Run(ctx context.Context, repo Repository, opts Options, w io.Writer, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}
	wanted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	receipts, err := repo.ReceiptsProcessedBetween(ctx, opts.From, opts.To)
	if err != nil {
		return Summary{}, fmt.Errorf("list receipts: %w", err)
	}
	var sum Summary
	for _, rc := range receipts {
		if !wanted[rc.Status] || rc.OCRText == "" {
			continue
		}
		sum.Scanned++
		up := Changes(rc, parser.ParseReceiptText(rc.OCRText))
		if len(up) == 0 {
			continue
		}
		if opts.DryRun {
			fmt.Fprintf(w, "DRY: receipt id=%d status=%s would set %v\n", rc.ID, rc.Status, up)
			sum.Changed++
			continue
		}
		ok, err := repo.UpdateReceiptIf(ctx, rc.ID, []string{rc.Status}, up)
		if err != nil {
			logger.Warn("reparse update failed", zap.Uint("receipt_id", rc.ID), zap.Error(err))
			sum.Skipped++
			continue
		}
		if !ok {
			// status moved on since the scan
			sum.Skipped++
			continue
		}
		sum.Changed++
		fmt.Fprintf(w, "updated receipt id=%d %v\n", rc.ID, up)
	}
	logger.Info("reparse done", zap.Int("scanned", sum.Scanned), zap.Int("changed", sum.Changed), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/fraud"
	"loyalty/pkg/repository"
	"loyalty/pkg/storage"
)

// outcome describes a terminal decision before it is persisted.
type outcome struct {
	status     string
	reason     string
	details    []RejectionDetail
	flags      []string
	candidates []StoreCandidate
	// skipInvoice leaves invoice_no empty so the invoice stays claimable by
	// a later submission.
	skipInvoice bool
	// bestEffortImg tolerates an image storage failure.
	bestEffortImg bool
}

func (a *attempt) storeID() *uint {
	if a.store == nil {
		return nil
	}
	return uintPtr(a.store.ID)
}

func (v *Validator) buildReceipt(a *attempt, o outcome) *models.Receipt {
	flags := append([]string{}, o.flags...)
	if a.parsedOK {
		flags = append(flags, a.parsed.Flags...)
	}
	rc := &models.Receipt{
		CustomerPhone: strPtr(a.phone),
		StoreID:       a.storeID(),
		ImageURL:      a.imageURL,
		OCRText:       a.text,
		TIN:           a.parsed.TIN,
		DateOnReceipt: a.parsed.Date,
		TotalAmount:   a.parsed.TotalAmount,
		BranchText:    a.parsed.BranchText,
		BarcodeData:   strPtr(a.parsed.BarcodeData),
		Status:        o.status,
		Reason:        o.reason,
		Flags:         flags,
		ProcessedAt:   a.now,
	}
	if !o.skipInvoice {
		rc.InvoiceNo = strPtr(a.parsed.InvoiceNo)
	}
	if s := a.score; s != nil {
		rc.ImageHash = s.ImageHash
		rc.FraudScore = s.OverallScore
		rc.TamperingScore = s.TamperingScore
		rc.AIDetectionScore = s.AIDetectionScore
		rc.FraudFlags = s.Flags
	} else if h, err := fraud.CalculateImageHash(a.in.Image); err == nil {
		rc.ImageHash = h
	}
	return rc
}

// finish persists a non-approved outcome and builds its Result.
func (v *Validator) finish(ctx context.Context, a *attempt, o outcome) (*Result, error) {
	if a.imageURL == "" {
		url, err := v.storage.Save(ctx, a.in.Image, storage.BucketFor(a.storeID()), a.in.Filename)
		switch {
		case err == nil:
			a.imageURL = url
		case o.bestEffortImg:
			v.logger.Warn("image save failed", zap.Error(err))
		default:
			return nil, fmt.Errorf("store image: %w", err)
		}
	}
	rc := v.buildReceipt(a, o)
	if err := v.insertTolerant(ctx, rc); err != nil {
		return nil, err
	}
	return v.result(a, rc, o), nil
}

// insertTolerant writes a receipt that does not need its invoice number or
// barcode to be unique. On a conflict the clashing value is dropped and
// noted in the flags.
func (v *Validator) insertTolerant(ctx context.Context, rc *models.Receipt) error {
	for {
		err := v.repo.CreateReceipt(ctx, rc)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrDuplicateInvoice) && rc.InvoiceNo != nil:
			rc.InvoiceNo = nil
			rc.Flags = append(rc.Flags, flagInvoiceAlreadyStored)
		case errors.Is(err, repository.ErrDuplicateBarcode) && rc.BarcodeData != nil:
			rc.BarcodeData = nil
			rc.Flags = append(rc.Flags, flagBarcodeAlreadyStored)
		default:
			return fmt.Errorf("save receipt: %w", err)
		}
		rc.ID = 0
	}
}

func (v *Validator) result(a *attempt, rc *models.Receipt, o outcome) *Result {
	res := &Result{
		Success:          rc.Status == models.ReceiptApproved,
		Status:           rc.Status,
		Reason:           o.reason,
		RejectionDetails: o.details,
		Flags:            rc.Flags,
		ReceiptID:        uintPtr(rc.ID),
		StoreID:          rc.StoreID,
		Candidates:       o.candidates,
		FraudScore:       a.score,
	}
	if a.parsedOK {
		p := a.parsed
		res.Parsed = &p
	}
	return res
}

package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/repository"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrNotReviewable   = errors.New("receipt is not awaiting review")
	ErrStoreRequired   = errors.New("choose a store before approving this receipt")
	ErrNotOwner        = errors.New("receipt belongs to another customer")
)

const (
	reasonReviewApproved = "Approved after manual review"
	reasonReviewRejected = "Rejected after manual review"
)

var reviewableStatuses = []string{models.ReceiptFlagged, models.ReceiptFlaggedManualRequested}

// Decision is a reviewer's verdict on a flagged receipt. StoreID assigns a
// store to receipts that were flagged before one was resolved.
type Decision struct {
	Approve bool
	By      string
	Notes   string
	StoreID *uint
}

func (v *Validator) loadReceipt(ctx context.Context, id uint) (*models.Receipt, error) {
	rc, err := v.repo.FindReceiptByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	return rc, err
}

// Review settles a flagged receipt. Approval runs the same customer, visit
// and reward steps as an automatic approval.
func (v *Validator) Review(ctx context.Context, receiptID uint, d Decision) (*Result, error) {
	rc, err := v.loadReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if rc.Status != models.ReceiptFlagged && rc.Status != models.ReceiptFlaggedManualRequested {
		return nil, ErrNotReviewable
	}
	now := v.now()
	updates := map[string]interface{}{
		"reviewed_by":  d.By,
		"reviewed_at":  now,
		"review_notes": d.Notes,
	}

	if !d.Approve {
		updates["status"] = models.ReceiptRejected
		updates["reason"] = reasonReviewRejected
		ok, err := v.repo.UpdateReceiptIf(ctx, rc.ID, reviewableStatuses, updates)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotReviewable
		}
		v.logger.Info("receipt review", zap.Uint("receipt_id", rc.ID), zap.String("by", d.By), zap.Bool("approved", false))
		return &Result{Status: models.ReceiptRejected, Reason: reasonReviewRejected, ReceiptID: uintPtr(rc.ID), StoreID: rc.StoreID}, nil
	}

	storeID := rc.StoreID
	if d.StoreID != nil {
		storeID = d.StoreID
	}
	if storeID == nil {
		return nil, ErrStoreRequired
	}
	if _, err := v.repo.FindStoreByID(ctx, *storeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStoreRequired
		}
		return nil, err
	}
	updates["status"] = models.ReceiptApproved
	updates["reason"] = reasonReviewApproved
	updates["store_id"] = *storeID
	ok, err := v.repo.UpdateReceiptIf(ctx, rc.ID, reviewableStatuses, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotReviewable
	}
	v.logger.Info("receipt review", zap.Uint("receipt_id", rc.ID), zap.String("by", d.By), zap.Bool("approved", true))

	res := &Result{Success: true, Status: models.ReceiptApproved, Reason: reasonReviewApproved, ReceiptID: uintPtr(rc.ID), StoreID: storeID}
	if rc.CustomerPhone == nil || *rc.CustomerPhone == "" {
		return res, nil
	}
	s := v.settings.Get(ctx)
	if err := v.afterApproval(ctx, res, rc.ID, *storeID, *rc.CustomerPhone, "", s, now); err != nil {
		return nil, err
	}
	return res, nil
}

// RequestManualReview lets the customer who uploaded a flagged receipt ask
// for it to be looked at.
func (v *Validator) RequestManualReview(ctx context.Context, receiptID uint, phone string) (*Result, error) {
	rc, err := v.loadReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if rc.CustomerPhone != nil && *rc.CustomerPhone != phone {
		return nil, ErrNotOwner
	}
	if rc.Status != models.ReceiptFlagged {
		return nil, ErrNotReviewable
	}
	ok, err := v.repo.UpdateReceiptIf(ctx, rc.ID, []string{models.ReceiptFlagged},
		map[string]interface{}{"status": models.ReceiptFlaggedManualRequested})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotReviewable
	}
	return &Result{Status: models.ReceiptFlaggedManualRequested, Reason: "Manual review requested", ReceiptID: uintPtr(rc.ID), StoreID: rc.StoreID}, nil
}

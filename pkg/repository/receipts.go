package repository

import (
	"context"
	"errors"
	"time"

	"loyalty/models"
)

// CreateReceipt inserts the receipt. Unique violations come back as
// ErrDuplicateInvoice or ErrDuplicateBarcode.
func (r *Repository) CreateReceipt(ctx context.Context, rc *models.Receipt) error {
	if err := r.db.WithContext(ctx).Create(rc).Error; err != nil {
		return classifyConflict(err)
	}
	return nil
}

func (r *Repository) FindReceiptByID(ctx context.Context, id uint) (*models.Receipt, error) {
	var rc models.Receipt
	if err := r.db.WithContext(ctx).First(&rc, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rc, nil
}

// InvoiceExists checks every receipt regardless of status.
func (r *Repository) InvoiceExists(ctx context.Context, invoiceNo string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Receipt{}).Where("invoice_no = ?", invoiceNo).Count(&n).Error
	return n > 0, err
}

// BarcodeInUse checks approved and pending receipts only.
func (r *Repository) BarcodeInUse(ctx context.Context, barcode string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("barcode_data = ? AND status IN ?", barcode, []string{models.ReceiptApproved, models.ReceiptPending}).
		Count(&n).Error
	return n > 0, err
}

// HasApprovedSince reports whether the phone has an approved receipt
// processed at or after since.
func (r *Repository) HasApprovedSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("customer_phone = ? AND status = ? AND processed_at >= ?", phone, models.ReceiptApproved, since).
		Count(&n).Error
	return n > 0, err
}

// ApprovedReceiptTimes returns processing times of the phone's approved
// receipts, oldest first.
func (r *Repository) ApprovedReceiptTimes(ctx context.Context, phone string) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("customer_phone = ? AND status = ?", phone, models.ReceiptApproved).
		Order("processed_at").
		Pluck("processed_at", &times).Error
	return times, err
}

// UpdateReceiptIf applies updates only while the receipt is in one of the
// from statuses. It reports whether a row changed.
func (r *Repository) UpdateReceiptIf(ctx context.Context, id uint, from []string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, classifyConflict(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ReceiptsProcessedBetween lists receipts processed in [from, to) with their
// store, oldest first.
func (r *Repository) ReceiptsProcessedBetween(ctx context.Context, from, to time.Time) ([]models.Receipt, error) {
	var out []models.Receipt
	err := r.db.WithContext(ctx).Preload("Store").
		Where("processed_at >= ? AND processed_at < ?", from, to).
		Order("processed_at, id").
		Find(&out).Error
	return out, err
}

func (r *Repository) findReceiptID(ctx context.Context, column, value string, statuses []string, excludeID uint) (uint, bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Receipt{}).
		Where(column+" = ? AND status IN ?", value, statuses)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var ids []uint
	if err := q.Order("id").Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (r *Repository) FindReceiptByImageHash(ctx context.Context, hash string, statuses []string, excludeID uint) (uint, bool, error) {
	return r.findReceiptID(ctx, "image_hash", hash, statuses, excludeID)
}

func (r *Repository) FindReceiptByInvoiceNo(ctx context.Context, invoiceNo string, statuses []string, excludeID uint) (uint, bool, error) {
	return r.findReceiptID(ctx, "invoice_no", invoiceNo, statuses, excludeID)
}

func (r *Repository) FindReceiptByBarcode(ctx context.Context, barcode string, statuses []string, excludeID uint) (uint, bool, error) {
	return r.findReceiptID(ctx, "barcode_data", barcode, statuses, excludeID)
}

// IsDuplicate reports whether err is one of the insert-conflict sentinels.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateInvoice) || errors.Is(err, ErrDuplicateBarcode) || errors.Is(err, ErrConflict)
}

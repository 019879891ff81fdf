package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Receipt statuses. A receipt row is written for every upload attempt.
const (
	ReceiptPending                = "pending"
	ReceiptApproved               = "approved"
	ReceiptRejected               = "rejected"
	ReceiptFlagged                = "flagged"
	ReceiptFlaggedManualRequested = "flagged_manual_requested"
	ReceiptNeedsStoreSelection    = "needs_store_selection"
)

// Receipt is the audit record of one upload attempt, including the extracted
// fields, the decision and the fraud signals that led to it.
//
// invoice_no is unique across all rows; barcode_data is unique only among
// approved and pending rows (partial index created in the repository migration).
type Receipt struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	CustomerPhone *string             `gorm:"size:32;index:idx_receipts_phone_status_processed,priority:1" json:"customerPhone,omitempty"`
	CustomerID    *uint               `gorm:"index" json:"customerId,omitempty"`
	StoreID       *uint               `gorm:"index" json:"storeId,omitempty"`
	Store         *Store              `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	ImageURL      string              `gorm:"size:512" json:"imageUrl"`
	OCRText       string              `gorm:"column:ocr_text;type:text" json:"ocrText"`
	TIN           string              `gorm:"column:tin;size:32" json:"tin,omitempty"`
	InvoiceNo     *string             `gorm:"size:64;uniqueIndex:idx_receipts_invoice_no" json:"invoiceNo,omitempty"`
	DateOnReceipt *time.Time          `json:"dateOnReceipt,omitempty"`
	TotalAmount   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"totalAmount"`
	BranchText    string              `gorm:"size:255" json:"branchText,omitempty"`
	BarcodeData   *string             `gorm:"size:64;index" json:"barcodeData,omitempty"`

	Status string                      `gorm:"size:32;not null;index;index:idx_receipts_phone_status_processed,priority:2" json:"status"`
	Reason string                      `gorm:"size:512" json:"reason,omitempty"`
	Flags  datatypes.JSONSlice[string] `json:"flags"`

	ImageHash        string                      `gorm:"size:64;index" json:"imageHash"`
	FraudScore       float64                     `json:"fraudScore"`
	TamperingScore   int                         `json:"tamperingScore"`
	AIDetectionScore int                         `gorm:"column:ai_detection_score" json:"aiDetectionScore"`
	FraudFlags       datatypes.JSONSlice[string] `json:"fraudFlags"`

	ProcessedAt time.Time  `gorm:"not null;index:idx_receipts_phone_status_processed,priority:3" json:"processedAt"`
	ReviewedBy  *string    `gorm:"size:255" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes *string    `gorm:"type:text" json:"reviewNotes,omitempty"`
}

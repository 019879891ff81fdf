package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store is a physical branch that accepts receipt uploads. Several branches
// of the same company usually share one TIN.
type Store struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	DeletedAt            gorm.DeletedAt      `gorm:"index" json:"-"`
	Name                 string              `gorm:"size:255;not null" json:"name"`
	Branch               string              `gorm:"size:255" json:"branch"`
	City                 string              `gorm:"size:128" json:"city"`
	Address              string              `gorm:"size:512" json:"address"`
	TIN                  string              `gorm:"column:tin;size:32;index" json:"tin"`
	Active               bool                `gorm:"not null;index" json:"active"`
	AllowReceiptUploads  bool                `gorm:"not null" json:"allowReceiptUploads"`
	MinReceiptAmount     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"minReceiptAmount"`
	ReceiptValidityHours *int                `json:"receiptValidityHours,omitempty"`
}

// BeforeSave keeps the TIN digit-only so lookups by parsed TIN are exact matches.
func (s *Store) BeforeSave(tx *gorm.DB) error {
	s.TIN = DigitsOnly(s.TIN)
	return nil
}

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

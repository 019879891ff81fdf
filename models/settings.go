package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SystemSettingsID is the primary key of the singleton settings row.
const SystemSettingsID = 1

// SystemSettings holds the business thresholds used by receipt validation.
type SystemSettings struct {
	ID                          uint                        `gorm:"primaryKey" json:"id"`
	CreatedAt                   time.Time                   `json:"createdAt"`
	UpdatedAt                   time.Time                   `json:"updatedAt"`
	AllowedTINs                 datatypes.JSONSlice[string] `gorm:"column:allowed_tins" json:"allowedTins"`
	MinReceiptAmount            decimal.Decimal             `gorm:"type:decimal(12,2);not null" json:"minReceiptAmount"`
	ReceiptValidityHours        int                         `gorm:"not null" json:"receiptValidityHours"`
	VisitLimitHours             int                         `gorm:"not null" json:"visitLimitHours"`
	RequiredVisits              int                         `gorm:"not null" json:"requiredVisits"`
	RewardPeriodDays            int                         `gorm:"not null" json:"rewardPeriodDays"`
	DiscountPercent             int                         `gorm:"not null" json:"discountPercent"`
	RewardExpirationDays        int                         `gorm:"not null" json:"rewardExpirationDays"`
	ClaimedRewardExpirationDays int                         `gorm:"not null" json:"claimedRewardExpirationDays"`
	UpdatedBy                   string                      `gorm:"size:255" json:"updatedBy"`
}

func (SystemSettings) TableName() string { return "system_settings" }

// Package settings serves the system-wide validation and reward thresholds
// from a cached singleton row, falling back to built-in defaults when the row
// is missing or the database cannot be read.
package settings

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"loyalty/models"
)

type Settings struct {
	AllowedTINs                 []string        `json:"allowedTins" validate:"required,min=1,dive,required,numeric"`
	MinReceiptAmount            decimal.Decimal `json:"minReceiptAmount"`
	ReceiptValidityHours        int             `json:"receiptValidityHours" validate:"gte=1"`
	VisitLimitHours             int             `json:"visitLimitHours" validate:"gte=0"`
	RequiredVisits              int             `json:"requiredVisits" validate:"gte=1"`
	RewardPeriodDays            int             `json:"rewardPeriodDays" validate:"gte=1"`
	DiscountPercent             int             `json:"discountPercent" validate:"gte=1,lte=100"`
	RewardExpirationDays        int             `json:"rewardExpirationDays" validate:"gte=1"`
	ClaimedRewardExpirationDays int             `json:"claimedRewardExpirationDays" validate:"gte=1"`
	UpdatedBy                   string          `json:"updatedBy,omitempty"`
	UpdatedAt                   time.Time       `json:"updatedAt,omitempty"`
}

// Defaults are served whenever the settings row cannot be used.
func Defaults() Settings {
	return Settings{
		AllowedTINs:                 []string{"0003169685"},
		MinReceiptAmount:            decimal.NewFromInt(100),
		ReceiptValidityHours:        24,
		VisitLimitHours:             24,
		RequiredVisits:              5,
		RewardPeriodDays:            45,
		DiscountPercent:             10,
		RewardExpirationDays:        45,
		ClaimedRewardExpirationDays: 30,
	}
}

func (s Settings) clone() Settings {
	s.AllowedTINs = append([]string(nil), s.AllowedTINs...)
	return s
}

// IsTINAllowed compares digits only, so formatting differences do not matter.
func IsTINAllowed(s Settings, tin string) bool {
	d := models.DigitsOnly(tin)
	if d == "" {
		return false
	}
	for _, allowed := range s.AllowedTINs {
		if models.DigitsOnly(allowed) == d {
			return true
		}
	}
	return false
}

// StoreRules are the thresholds applied to one store's receipts.
type StoreRules struct {
	MinAmount     decimal.Decimal
	ValidityHours int
}

// MaxAgeDays converts the validity window to whole days, rounding up.
func (r StoreRules) MaxAgeDays() int {
	if r.ValidityHours <= 0 {
		return 0
	}
	return int(math.Ceil(float64(r.ValidityHours) / 24))
}

// EffectiveRules merges store overrides into the system settings. A store may
// raise the minimum amount but never lower it; a positive store validity
// replaces the system value.
func EffectiveRules(s Settings, store *models.Store) StoreRules {
	rules := StoreRules{MinAmount: s.MinReceiptAmount, ValidityHours: s.ReceiptValidityHours}
	if store == nil {
		return rules
	}
	if store.MinReceiptAmount.Valid && store.MinReceiptAmount.Decimal.GreaterThan(rules.MinAmount) {
		rules.MinAmount = store.MinReceiptAmount.Decimal
	}
	if store.ReceiptValidityHours != nil && *store.ReceiptValidityHours > 0 {
		rules.ValidityHours = *store.ReceiptValidityHours
	}
	return rules
}

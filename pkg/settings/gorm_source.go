package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loyalty/models"
)

// GormSource stores settings in the system_settings singleton row.
type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (g *GormSource) Load(ctx context.Context) (*Settings, error) {
	var row models.SystemSettings
	err := g.db.WithContext(ctx).Where("id = ?", models.SystemSettingsID).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, ErrNotFound
	}
	s := Settings{
		AllowedTINs:                 append([]string(nil), row.AllowedTINs...),
		MinReceiptAmount:            row.MinReceiptAmount,
		ReceiptValidityHours:        row.ReceiptValidityHours,
		VisitLimitHours:             row.VisitLimitHours,
		RequiredVisits:              row.RequiredVisits,
		RewardPeriodDays:            row.RewardPeriodDays,
		DiscountPercent:             row.DiscountPercent,
		RewardExpirationDays:        row.RewardExpirationDays,
		ClaimedRewardExpirationDays: row.ClaimedRewardExpirationDays,
		UpdatedBy:                   row.UpdatedBy,
		UpdatedAt:                   row.UpdatedAt,
	}
	return &s, nil
}

// Save upserts the singleton row.
func (g *GormSource) Save(ctx context.Context, s Settings) error {
	row := models.SystemSettings{
		ID:                          models.SystemSettingsID,
		AllowedTINs:                 s.AllowedTINs,
		MinReceiptAmount:            s.MinReceiptAmount,
		ReceiptValidityHours:        s.ReceiptValidityHours,
		VisitLimitHours:             s.VisitLimitHours,
		RequiredVisits:              s.RequiredVisits,
		RewardPeriodDays:            s.RewardPeriodDays,
		DiscountPercent:             s.DiscountPercent,
		RewardExpirationDays:        s.RewardExpirationDays,
		ClaimedRewardExpirationDays: s.ClaimedRewardExpirationDays,
		UpdatedBy:                   s.UpdatedBy,
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "allowed_tins", "min_receipt_amount", "receipt_validity_hours",
			"visit_limit_hours", "required_visits", "reward_period_days", "discount_percent",
			"reward_expiration_days", "claimed_reward_expiration_days", "updated_by",
		}),
	}).Create(&row).Error
}

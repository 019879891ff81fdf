package repository

import (
	"context"
	"time"

	"loyalty/models"
)

// HasActiveReward reports whether the customer holds a pending, claimed or
// redeemed reward for the store.
func (r *Repository) HasActiveReward(ctx context.Context, customerID, storeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("customer_id = ? AND store_id = ? AND status IN ?", customerID, storeID, models.ActiveRewardStatuses).
		Count(&n).Error
	return n > 0, err
}

func (r *Repository) CreateReward(ctx context.Context, rw *models.Reward) error {
	if err := r.db.WithContext(ctx).Create(rw).Error; err != nil {
		return classifyConflict(err)
	}
	return nil
}

func (r *Repository) FindRewardByCode(ctx context.Context, code string) (*models.Reward, error) {
	var rw models.Reward
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&rw).Error; err != nil {
		return nil, notFound(err)
	}
	return &rw, nil
}

// UpdateRewardIf applies updates only while the reward has status from.
func (r *Repository) UpdateRewardIf(ctx context.Context, id uint, from string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// ExpireRewards moves active rewards whose expiry has passed to expired.
func (r *Repository) ExpireRewards(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Reward{}).
		Where("status IN ? AND expires_at < ?", models.ActiveRewardStatuses, now).
		Update("status", models.RewardExpired)
	return res.RowsAffected, res.Error
}

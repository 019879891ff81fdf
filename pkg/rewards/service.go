package rewards

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/repository"
)

var (
	ErrNotFound     = errors.New("reward not found")
	ErrExpired      = errors.New("reward expired")
	ErrWrongStore   = errors.New("reward belongs to another store")
	ErrInvalidState = errors.New("reward cannot make this transition")
)

type Repository interface {
	FindRewardByCode(ctx context.Context, code string) (*models.Reward, error)
	UpdateRewardIf(ctx context.Context, id uint, from string, updates map[string]interface{}) (bool, error)
	ExpireRewards(ctx context.Context, now time.Time) (int64, error)
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Find(ctx context.Context, code string) (*models.Reward, error) {
	rw, err := s.repo.FindRewardByCode(ctx, CodeFromPayload(code))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rw, err
}

// Redeem moves a claimed reward to redeemed at the store that issued it.
func (s *Service) Redeem(ctx context.Context, code string, storeID uint) (*models.Reward, error) {
	return s.transition(ctx, code, storeID, models.RewardClaimed, models.RewardRedeemed, "redeemed_at")
}

// MarkUsed moves a redeemed reward to used.
func (s *Service) MarkUsed(ctx context.Context, code string, storeID uint) (*models.Reward, error) {
	return s.transition(ctx, code, storeID, models.RewardRedeemed, models.RewardUsed, "used_at")
}

func (s *Service) transition(ctx context.Context, code string, storeID uint, from, to, stampColumn string) (*models.Reward, error) {
	rw, err := s.Find(ctx, code)
	if err != nil {
		return nil, err
	}
	if rw.StoreID != storeID {
		return nil, ErrWrongStore
	}
	now := s.now()
	if rw.Status == models.RewardExpired {
		return nil, ErrExpired
	}
	if now.After(rw.ExpiresAt) {
		if _, err := s.repo.UpdateRewardIf(ctx, rw.ID, rw.Status, map[string]interface{}{"status": models.RewardExpired}); err != nil {
			s.logger.Warn("expire reward failed", zap.Uint("reward_id", rw.ID), zap.Error(err))
		}
		return nil, ErrExpired
	}
	if rw.Status != from {
		return nil, ErrInvalidState
	}
	ok, err := s.repo.UpdateRewardIf(ctx, rw.ID, from, map[string]interface{}{"status": to, stampColumn: now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	rw.Status = to
	switch stampColumn {
	case "redeemed_at":
		rw.RedeemedAt = &now
	case "used_at":
		rw.UsedAt = &now
	}
	s.logger.Info("reward transition", zap.String("code", rw.Code), zap.String("from", from), zap.String("to", to))
	return rw, nil
}

// ExpireOverdue expires every active reward past its expiry.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireRewards(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("rewards expired", zap.Int64("count", n))
	}
	return n, nil
}

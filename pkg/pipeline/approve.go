package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/repository"
	"loyalty/pkg/rewards"
	"loyalty/pkg/settings"
)

func defaultRewardCode() string { return rewards.GenerateCode() }

// approve is stages 10 and 11. A unique-index conflict on insert turns the
// approval into a duplicate rejection.
func (v *Validator) approve(ctx context.Context, a *attempt, warnings []string) (*Result, error) {
	o := outcome{status: models.ReceiptApproved, reason: reasonApproved, flags: warnings}
	rc := v.buildReceipt(a, o)
	if err := v.repo.CreateReceipt(ctx, rc); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateInvoice):
			return v.finish(ctx, a, duplicateInvoice(a.parsed.InvoiceNo))
		case errors.Is(err, repository.ErrDuplicateBarcode):
			return v.finish(ctx, a, duplicateBarcode(a.parsed.BarcodeData))
		}
		return nil, fmt.Errorf("save approved receipt: %w", err)
	}
	res := v.result(a, rc, o)
	if a.phone == "" {
		return res, nil
	}
	if err := v.afterApproval(ctx, res, rc.ID, a.store.ID, a.phone, a.in.CustomerName, a.settings, a.now); err != nil {
		return nil, err
	}
	return res, nil
}

// afterApproval records the customer's visit and issues a reward once the
// visits in the current period reach the required count and the customer
// holds no active reward for the store.
func (v *Validator) afterApproval(ctx context.Context, res *Result, receiptID, storeID uint, phone, name string, s settings.Settings, now time.Time) error {
	customer, err := v.repo.FindOrCreateCustomer(ctx, phone, name)
	if err != nil {
		return fmt.Errorf("customer: %w", err)
	}
	visit, err := v.repo.RecordVisit(ctx, customer.ID, storeID, receiptID, now)
	if err != nil {
		return fmt.Errorf("visit: %w", err)
	}
	res.VisitID = uintPtr(visit.ID)
	res.VisitCount = intPtr(customer.TotalVisits + 1)

	approvals, err := v.repo.ApprovedReceiptTimes(ctx, phone)
	if err != nil {
		return err
	}
	period := time.Duration(s.RewardPeriodDays) * 24 * time.Hour
	_, inPeriod := rewards.PeriodCount(approvals, period, now)
	res.VisitsInPeriod = intPtr(inPeriod)
	res.VisitsNeeded = intPtr(max(s.RequiredVisits-inPeriod, 0))
	if inPeriod < s.RequiredVisits {
		return nil
	}

	active, err := v.repo.HasActiveReward(ctx, customer.ID, storeID)
	if err != nil {
		return err
	}
	if active {
		return nil
	}
	rw := &models.Reward{
		CustomerID:      customer.ID,
		StoreID:         storeID,
		Code:            v.newCode(),
		RewardType:      models.RewardTypeDiscount,
		IssuedAt:        now,
		ClaimedAt:       &now,
		ExpiresAt:       rewards.ExpiryFor(now, s.RewardExpirationDays, s.ClaimedRewardExpirationDays),
		Status:          models.RewardClaimed,
		DiscountPercent: s.DiscountPercent,
	}
	if err := v.repo.CreateReward(ctx, rw); err != nil {
		if !repository.IsDuplicate(err) {
			return fmt.Errorf("reward: %w", err)
		}
		// code collision
		rw.ID, rw.Code = 0, v.newCode()
		if err := v.repo.CreateReward(ctx, rw); err != nil {
			return fmt.Errorf("reward: %w", err)
		}
	}
	if err := v.repo.MarkVisitRewardEarned(ctx, visit.ID); err != nil {
		return err
	}
	res.RewardID = uintPtr(rw.ID)
	res.RewardCode = rw.Code
	v.logger.Info("reward issued",
		zap.Uint("customer_id", customer.ID),
		zap.Uint("store_id", storeID),
		zap.String("code", rw.Code),
		zap.Int("visits_in_period", inPeriod))
	return nil
}

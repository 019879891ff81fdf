package models

import "time"

// Reward statuses. pending, claimed and redeemed count as active: a customer
// holds at most one active reward per store.
const (
	RewardPending  = "pending"
	RewardClaimed  = "claimed"
	RewardRedeemed = "redeemed"
	RewardUsed     = "used"
	RewardExpired  = "expired"

	RewardTypeDiscount = "discount"
)

// ActiveRewardStatuses lists the statuses that block issuing a new reward.
var ActiveRewardStatuses = []string{RewardPending, RewardClaimed, RewardRedeemed}

type Reward struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	CustomerID      uint       `gorm:"index:idx_rewards_customer_store,priority:1;not null" json:"customerId"`
	StoreID         uint       `gorm:"index:idx_rewards_customer_store,priority:2;not null" json:"storeId"`
	Code            string     `gorm:"size:32;not null;uniqueIndex" json:"code"`
	RewardType      string     `gorm:"size:32;not null" json:"rewardType"`
	IssuedAt        time.Time  `gorm:"not null" json:"issuedAt"`
	ClaimedAt       *time.Time `json:"claimedAt,omitempty"`
	RedeemedAt      *time.Time `json:"redeemedAt,omitempty"`
	UsedAt          *time.Time `json:"usedAt,omitempty"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expiresAt"`
	Status          string     `gorm:"size:16;not null;index" json:"status"`
	DiscountPercent int        `gorm:"not null" json:"discountPercent"`
}

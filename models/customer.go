package models

import "time"

// Customer is keyed by phone and created on the first approved receipt.
type Customer struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Name        string     `gorm:"size:255" json:"name"`
	Phone       string     `gorm:"size:32;not null;uniqueIndex" json:"phone"`
	TotalVisits int        `gorm:"not null;default:0" json:"totalVisits"`
	LastVisit   *time.Time `json:"lastVisit,omitempty"`
}

// Visit is written once per approved receipt that has a customer.
type Visit struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	CustomerID   uint      `gorm:"index;not null" json:"customerId"`
	StoreID      uint      `gorm:"index;not null" json:"storeId"`
	ReceiptID    uint      `gorm:"uniqueIndex;not null" json:"receiptId"`
	Timestamp    time.Time `gorm:"not null" json:"timestamp"`
	RewardEarned bool      `gorm:"default:false" json:"rewardEarned"`
}

package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"loyalty/models"
)

// FindOrCreateCustomer returns the customer with the phone, creating it on
// first use. A concurrent insert of the same phone is resolved by re-reading.
func (r *Repository) FindOrCreateCustomer(ctx context.Context, phone, name string) (*models.Customer, error) {
	db := r.db.WithContext(ctx)
	var c models.Customer
	err := db.Where("phone = ?", phone).First(&c).Error
	if err == nil {
		if c.Name == "" && name != "" {
			db.Model(&c).Update("name", name)
		}
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c = models.Customer{Phone: phone, Name: name}
	if err := db.Create(&c).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, err
		}
		if err := db.Where("phone = ?", phone).First(&c).Error; err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// RecordVisit links the receipt to the customer, writes the visit and bumps
// the customer's visit counter in one transaction.
func (r *Repository) RecordVisit(ctx context.Context, customerID, storeID, receiptID uint, at time.Time) (*models.Visit, error) {
	v := &models.Visit{CustomerID: customerID, StoreID: storeID, ReceiptID: receiptID, Timestamp: at}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Receipt{}).Where("id = ?", receiptID).Update("customer_id", customerID).Error; err != nil {
			return err
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		return tx.Model(&models.Customer{}).Where("id = ?", customerID).Updates(map[string]interface{}{
			"total_visits": gorm.Expr("total_visits + ?", 1),
			"last_visit":   at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Repository) MarkVisitRewardEarned(ctx context.Context, visitID uint) error {
	return r.db.WithContext(ctx).Model(&models.Visit{}).Where("id = ?", visitID).Update("reward_earned", true).Error
}

func (r *Repository) FindCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

package repository

import (
	"context"

	"loyalty/models"
)

func (r *Repository) FindStoreByID(ctx context.Context, id uint) (*models.Store, error) {
	var s models.Store
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindUploadableStoresByTIN lists active, upload-enabled stores with the TIN.
func (r *Repository) FindUploadableStoresByTIN(ctx context.Context, tin string) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.WithContext(ctx).
		Where("tin = ? AND active = ? AND allow_receipt_uploads = ?", models.DigitsOnly(tin), true, true).
		Order("id").
		Find(&stores).Error
	return stores, err
}

func (r *Repository) CreateStore(ctx context.Context, s *models.Store) error {
	return r.db.WithContext(ctx).Create(s).Error
}

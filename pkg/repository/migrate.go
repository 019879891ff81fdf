package repository

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyalty/models"
)

// partial unique index: a barcode may be reused once the earlier receipt was
// rejected or flagged
const barcodeIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_barcode_active
	ON receipts(barcode_data) WHERE status IN ('approved', 'pending')`

// Migrate creates or updates the schema. Models are migrated one at a time so
// a failure on one table does not block the others; failures are logged and
// the first one is returned.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var firstErr error
	steps := []struct {
		table string
		model interface{}
	}{
		{"stores", &models.Store{}},
		{"customers", &models.Customer{}},
		{"receipts", &models.Receipt{}},
		{"visits", &models.Visit{}},
		{"rewards", &models.Reward{}},
		{"system_settings", &models.SystemSettings{}},
	}
	for _, s := range steps {
		if err := db.AutoMigrate(s.model); err != nil {
			logger.Warn("migration warning", zap.String("table", s.table), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := db.Exec(barcodeIndexSQL).Error; err != nil {
		logger.Warn("migration warning", zap.String("index", "idx_receipts_barcode_active"), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package main

import (
	"context"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyalty/pkg/app"
	"loyalty/pkg/config"
	"loyalty/process/sanitize"
)

// initDB connects and migrates, exiting on failure.
func initDB(cfg *config.Config, logger *zap.Logger) *gorm.DB {
	db, err := app.OpenDB(cfg, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	return db
}

// seedDB makes a fresh development database usable: one store on the first
// allowed TIN that accepts uploads.
func seedDB(db *gorm.DB, logger *zap.Logger) {
	if _, err := sanitize.SeedDemoStore(context.Background(), db, logger); err != nil {
		logger.Warn("seed demo store", zap.Error(err))
	}
}

// ensureUploadBase creates the base directory for local image storage.
func ensureUploadBase(cfg *config.Config, logger *zap.Logger) {
	if cfg.StorageDriver != config.StorageLocal {
		return
	}
	if err := os.MkdirAll(cfg.UploadBase, 0o755); err != nil {
		logger.Warn("failed to create upload base dir", zap.String("dir", cfg.UploadBase), zap.Error(err))
	}
}

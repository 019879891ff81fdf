// Package app wires the receipt services together for the HTTP server and
// the batch tools.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"loyalty/pkg/config"
	"loyalty/pkg/fraud"
	"loyalty/pkg/ocr"
	"loyalty/pkg/pipeline"
	"loyalty/pkg/repository"
	"loyalty/pkg/rewards"
	"loyalty/pkg/settings"
	"loyalty/pkg/storage"
)

type App struct {
	Logger    *zap.Logger
	DB        *gorm.DB
	Repo      *repository.Repository
	Storage   storage.Storage
	Settings  *settings.Provider
	Validator *pipeline.Validator
	Rewards   *rewards.Service
}

type Options struct {
	OCR         ocr.Client
	Storage     storage.Storage
	SettingsTTL time.Duration
}

// New builds the services on top of an open database.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := repository.New(db)
	provider := settings.NewProvider(settings.NewGormSource(db), opts.SettingsTTL, logger.Named("settings"))
	return &App{
		Logger:   logger,
		DB:       db,
		Repo:     repo,
		Storage:  opts.Storage,
		Settings: provider,
		Validator: pipeline.New(pipeline.Deps{
			Repo:     repo,
			OCR:      opts.OCR,
			Storage:  opts.Storage,
			Settings: provider,
			Fraud:    fraud.NewAnalyzer(repo, logger.Named("fraud")),
			Logger:   logger.Named("pipeline"),
		}),
		Rewards: rewards.NewService(repo, logger.Named("rewards")),
	}
}

// OpenDB connects to Postgres and, unless disabled, migrates the schema.
func OpenDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is not set. This service requires a Postgres DSN in DB_DSN")
	}
	level := gormlogger.Warn
	if cfg.Development() {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := repository.Migrate(db, logger); err != nil {
			// partial migrations are tolerated; the failing table was logged
			logger.Warn("schema migration incomplete", zap.Error(err))
		}
	}
	return db, nil
}

// NewStorage returns the image store selected by STORAGE_DRIVER.
func NewStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageDriver == config.StorageS3 {
		return storage.NewS3(ctx, cfg.S3)
	}
	return storage.NewLocal(cfg.UploadBase)
}

// FromConfig opens every external dependency described by cfg.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := OpenDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	st, err := NewStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	client := ocr.NewTesseractClient(ocr.Options{
		Language:       cfg.OCRLanguage,
		TessdataPrefix: cfg.TessdataPrefix,
		Timeout:        cfg.OCRTimeout,
	}, logger.Named("ocr"))
	return New(db, Options{OCR: client, Storage: st, SettingsTTL: cfg.SettingsTTL}, logger), nil
}

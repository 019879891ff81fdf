// Package config loads runtime settings from the environment, an optional
// .env file and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"loyalty/pkg/storage"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Env            string
	HTTPAddr       string
	DBDSN          string
	DBAutoMigrate  bool
	JWTSecret      string
	UploadBase     string
	MaxUploadBytes int64
	StorageDriver  string
	S3             storage.S3Config
	OCRLanguage    string
	OCRTimeout     time.Duration
	TessdataPrefix string
	SettingsTTL    time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("JWT_SECRET", "dev-insecure-secret-change")
	v.SetDefault("UPLOAD_BASE", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("OCR_LANGUAGE", "eng")
	v.SetDefault("OCR_TIMEOUT", "30s")
	v.SetDefault("SETTINGS_CACHE_TTL", "5m")
}

// Load reads .env (when present) into the process environment, then layers
// the environment over config.yaml over the defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	defaults(v)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Env:            strings.ToLower(v.GetString("APP_ENV")),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		DBDSN:          v.GetString("DB_DSN"),
		DBAutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		UploadBase:     v.GetString("UPLOAD_BASE"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		StorageDriver:  strings.ToLower(v.GetString("STORAGE_DRIVER")),
		S3: storage.S3Config{
			Bucket:    v.GetString("AWS_S3_BUCKET"),
			Region:    v.GetString("AWS_S3_REGION"),
			AccessKey: v.GetString("AWS_ACCESS_KEY"),
			SecretKey: v.GetString("AWS_SECRET_KEY"),
			Endpoint:  v.GetString("AWS_S3_ENDPOINT"),
		},
		OCRLanguage:    v.GetString("OCR_LANGUAGE"),
		OCRTimeout:     v.GetDuration("OCR_TIMEOUT"),
		TessdataPrefix: v.GetString("TESSDATA_PREFIX"),
		SettingsTTL:    v.GetDuration("SETTINGS_CACHE_TTL"),
	}
	switch c.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if c.S3.Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.OCRTimeout <= 0 {
		return nil, fmt.Errorf("OCR_TIMEOUT must be positive, got %s", c.OCRTimeout)
	}
	return c, nil
}

// Development reports whether APP_ENV selects the development profile.
func (c *Config) Development() bool {
	return c.Env == "development" || c.Env == "dev"
}

// NewLogger builds the process logger: human readable in development,
// JSON otherwise.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

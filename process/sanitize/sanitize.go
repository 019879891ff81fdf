// Package sanitize empties the loyalty tables of a development or staging
// database and optionally reseeds it with default settings and a demo store.
package sanitize

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"loyalty/models"
	"loyalty/pkg/settings"
)

// DefaultTables lists the loyalty tables children first.
var DefaultTables = []string{"rewards", "visits", "receipts", "customers", "stores", "system_settings"}

var tableNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type Options struct {
	Tables []string
	DryRun bool
	// Yes confirms the destructive run; without it nothing is deleted.
	Yes    bool
	Reseed bool
}

// ValidTables drops blank and malformed identifiers.
func ValidTables(in []string, logger *zap.Logger) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !tableNameRE.MatchString(t) {
			logger.Warn("skipping invalid table name", zap.String("table", t))
			continue
		}
		out = append(out, t)
	}
	return out
}

// Run empties the requested tables that exist. It reports the tables it
// considered to w and returns the ones it emptied.
func Run(ctx context.Context, db *gorm.DB, opts Options, w io.Writer, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tables := opts.Tables
	if len(tables) == 0 {
		tables = DefaultTables
	}
	var existing []string
	for _, t := range ValidTables(tables, logger) {
		if db.Migrator().HasTable(t) {
			existing = append(existing, t)
		} else {
			logger.Info("table not found, skipping", zap.String("table", t))
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(w, "no requested tables present in the database; nothing to do")
		return nil, nil
	}

	fmt.Fprintln(w, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(w, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil, nil
	}
	if !opts.Yes {
		fmt.Fprintln(w, "Destructive operation. Pass --yes to confirm execution. Aborting.")
		return nil, nil
	}

	if err := truncate(ctx, db, existing); err != nil {
		return nil, err
	}
	logger.Info("truncate completed", zap.Strings("tables", existing))

	if opts.Reseed {
		if err := Reseed(ctx, db, logger); err != nil {
			return existing, fmt.Errorf("reseed: %w", err)
		}
	}
	return existing, nil
}

func truncate(ctx context.Context, db *gorm.DB, tables []string) error {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	tx := db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
		return nil
	}
	for _, t := range quoted {
		if err := tx.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("delete from %s: %w", t, err)
		}
	}
	return nil
}

// Reseed writes the default settings row and the demo store.
func Reseed(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	defaults := settings.Defaults()
	defaults.UpdatedBy = "reseed"
	if err := settings.NewGormSource(db).Save(ctx, defaults); err != nil {
		return fmt.Errorf("save default settings: %w", err)
	}
	_, err := SeedDemoStore(ctx, db, logger)
	return err
}

// SeedDemoStore creates a store on the first default TIN when the database
// has no stores yet. It returns nil when stores already exist.
func SeedDemoStore(ctx context.Context, db *gorm.DB, logger *zap.Logger) (*models.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var count int64
	if err := db.WithContext(ctx).Model(&models.Store{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count stores: %w", err)
	}
	if count > 0 {
		return nil, nil
	}
	store := models.Store{
		Name:                "Demo Store",
		Branch:              "Main",
		TIN:                 settings.Defaults().AllowedTINs[0],
		Active:              true,
		AllowReceiptUploads: true,
	}
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	logger.Info("seeded demo store", zap.Uint("store_id", store.ID), zap.String("tin", store.TIN))
	return &store, nil
}

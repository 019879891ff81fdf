package sanitize

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/dbtest"
)

func TestValidTables(t *testing.T) {
	got := ValidTables([]string{" receipts ", "", "users; drop", "9bad", "_ok"}, zap.NewNop())
	require.Equal(t, []string{"receipts", "_ok"}, got)
}

func TestRunNeedsConfirmation(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	_, err := SeedDemoStore(ctx, db, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	done, err := Run(ctx, db, Options{Tables: []string{"stores", "missing_table"}, DryRun: true}, &out, nil)
	require.NoError(t, err)
	require.Empty(t, done)
	require.Contains(t, out.String(), " - stores")
	require.NotContains(t, out.String(), "missing_table")

	done, err = Run(ctx, db, Options{Tables: []string{"stores"}}, &out, nil)
	require.NoError(t, err)
	require.Empty(t, done)

	var count int64
	require.NoError(t, db.Model(&models.Store{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRunTruncatesAndReseeds(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.Store{Name: "Old", TIN: "123456789"}).Error)
	require.NoError(t, db.Create(&models.Receipt{Status: models.ReceiptRejected, ImageHash: "x"}).Error)

	var out bytes.Buffer
	done, err := Run(ctx, db, Options{Yes: true, Reseed: true}, &out, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultTables, done)

	var receipts int64
	require.NoError(t, db.Model(&models.Receipt{}).Count(&receipts).Error)
	require.Zero(t, receipts)

	var stores []models.Store
	require.NoError(t, db.Find(&stores).Error)
	require.Len(t, stores, 1)
	require.Equal(t, "Demo Store", stores[0].Name)

	var row models.SystemSettings
	require.NoError(t, db.First(&row, models.SystemSettingsID).Error)
	require.Equal(t, "reseed", row.UpdatedBy)

	again, err := SeedDemoStore(ctx, db, nil)
	require.NoError(t, err)
	require.Nil(t, again)
}

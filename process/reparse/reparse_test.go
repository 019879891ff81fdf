package reparse

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loyalty/models"
	"loyalty/pkg/dbtest"
	"loyalty/pkg/parser"
	"loyalty/pkg/repository"
)

const sampleText = "SM SUPERMARKET\nBranch: Makati City\nTIN: 000-316-968-5\nInvoice No: SI-1\nDate: 2024-03-10\nTOTAL 504.00\n"

func TestChangesFillsOnlyEmptyFields(t *testing.T) {
	p := parser.ParseReceiptText(sampleText)
	up := Changes(models.Receipt{TIN: "123456789"}, p)
	require.NotContains(t, up, "tin")
	require.Contains(t, up, "total_amount")
	require.Contains(t, up, "date_on_receipt")

	full := models.Receipt{TIN: "1", TotalAmount: p.TotalAmount, DateOnReceipt: p.Date, BranchText: "x"}
	require.Empty(t, Changes(full, p))
}

func TestRun(t *testing.T) {
	repo := repository.New(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC()

	flagged := &models.Receipt{Status: models.ReceiptFlagged, OCRText: sampleText, ProcessedAt: now, ImageHash: "a"}
	rejected := &models.Receipt{Status: models.ReceiptRejected, OCRText: sampleText, ProcessedAt: now, ImageHash: "b"}
	noText := &models.Receipt{Status: models.ReceiptFlagged, ProcessedAt: now, ImageHash: "c"}
	for _, rc := range []*models.Receipt{flagged, rejected, noText} {
		require.NoError(t, repo.CreateReceipt(ctx, rc))
	}
	opts := Options{From: now.Add(-time.Hour), To: now.Add(time.Hour), DryRun: true}

	var out bytes.Buffer
	sum, err := Run(ctx, repo, opts, &out, nil)
	require.NoError(t, err)
	require.Equal(t, Summary{Scanned: 1, Changed: 1}, sum)
	require.Contains(t, out.String(), "DRY: receipt id=")
	got, err := repo.FindReceiptByID(ctx, flagged.ID)
	require.NoError(t, err)
	require.Empty(t, got.TIN)

	opts.DryRun = false
	sum, err = Run(ctx, repo, opts, &out, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Changed)
	got, err = repo.FindReceiptByID(ctx, flagged.ID)
	require.NoError(t, err)
	require.Equal(t, "0003169685", got.TIN)
	require.Equal(t, "504.00", got.TotalAmount.Decimal.StringFixed(2))
	require.Equal(t, models.ReceiptFlagged, got.Status)

	other, err := repo.FindReceiptByID(ctx, rejected.ID)
	require.NoError(t, err)
	require.Empty(t, other.TIN)

	// a second pass has nothing left to fill
	sum, err = Run(ctx, repo, opts, &out, nil)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Changed)
}

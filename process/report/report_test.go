package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loyalty/models"
	"loyalty/pkg/dbtest"
	"loyalty/pkg/repository"
)

func money(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2024-12")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = MonthRange("12-2024")
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	one, two := uint(1), uint(2)
	rows := []models.Receipt{
		{StoreID: &two, Status: models.ReceiptApproved, TotalAmount: money("100.50")},
		{Status: models.ReceiptNeedsStoreSelection},
		{StoreID: &one, Status: models.ReceiptRejected, TotalAmount: money("20")},
		{StoreID: &two, Status: models.ReceiptApproved, TotalAmount: money("200.25"), Store: &models.Store{Name: "SM", Branch: "Cebu"}},
		{StoreID: &two, Status: models.ReceiptFlagged},
	}
	got := Summarize(rows)
	require.Len(t, got, 3)
	require.Equal(t, uint(1), *got[0].StoreID)
	require.Equal(t, "SM - Cebu", got[1].StoreName)
	require.Equal(t, 3, got[1].Total)
	require.Equal(t, 2, got[1].ByStatus[models.ReceiptApproved])
	require.Equal(t, "300.75", got[1].ApprovedAmount.StringFixed(2))
	require.Nil(t, got[2].StoreID)
	require.True(t, got[0].ApprovedAmount.IsZero())
}

func TestBuildPrintAndXLSX(t *testing.T) {
	repo := repository.New(dbtest.Open(t))
	ctx := context.Background()
	store := models.Store{Name: "SM", Branch: "Makati", TIN: "0003169685", Active: true, AllowReceiptUploads: true}
	require.NoError(t, repo.CreateStore(ctx, &store))
	inv := "SI-1"
	in := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateReceipt(ctx, &models.Receipt{StoreID: &store.ID, Status: models.ReceiptApproved, InvoiceNo: &inv, TotalAmount: money("504"), ProcessedAt: in}))
	require.NoError(t, repo.CreateReceipt(ctx, &models.Receipt{StoreID: &store.ID, Status: models.ReceiptRejected, ProcessedAt: in.AddDate(0, 1, 0)}))

	rep, err := Build(ctx, repo, "2024-03")
	require.NoError(t, err)
	require.Len(t, rep.Receipts, 1)
	require.Len(t, rep.Stores, 1)
	require.Equal(t, "SM - Makati", rep.Stores[0].StoreName)

	var out bytes.Buffer
	rep.Print(&out, true)
	require.Contains(t, out.String(), "approved=1")
	require.Contains(t, out.String(), "approved_amount=504.00")
	require.True(t, strings.Contains(out.String(), "|SI-1|504.00|"))

	b, err := rep.XLSX()
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	name, err := f.GetCellValue("Summary", "A2")
	require.NoError(t, err)
	require.Equal(t, "SM - Makati", name)
	inv2, err := f.GetCellValue("Receipts", "G2")
	require.NoError(t, err)
	require.Equal(t, "SI-1", inv2)
}

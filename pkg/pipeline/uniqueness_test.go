package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loyalty/models"
	"loyalty/pkg/pipeline"
	"loyalty/pkg/repository"
	"loyalty/pkg/storage"
)

const testBarcode = "4800016644290"

func (h *harness) barcodeText(invoice, barcode string) string {
	return h.receiptText("0003169685", invoice, "504.00") + barcode + "\n"
}

func TestValidateRejectsBarcodeOfApprovedReceipt(t *testing.T) {
	h := newHarness(t)
	ref := pipeline.ExplicitStore(h.store.ID)

	first := h.submit(ref, "", h.barcodeText("SI-0400", testBarcode))
	require.True(t, first.Success, first.Reason)
	require.Equal(t, testBarcode, *h.receipt(first).BarcodeData)

	second := h.submit(ref, "", h.barcodeText("SI-0401", testBarcode))
	require.Equal(t, models.ReceiptRejected, second.Status)
	require.Len(t, second.RejectionDetails, 1)
	require.Equal(t, "barcode", second.RejectionDetails[0].Field)
	require.Equal(t, "duplicate", second.RejectionDetails[0].Issue)
	require.Equal(t, testBarcode, second.RejectionDetails[0].Found)

	// the invoice stays on the rejected receipt
	require.Equal(t, "SI-0401", *h.receipt(second).InvoiceNo)
}

func TestValidateBarcodeOfRejectedReceiptIsReusable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bc := testBarcode
	rejected := &models.Receipt{Status: models.ReceiptRejected, BarcodeData: &bc, ProcessedAt: h.now, ImageHash: "seed"}
	require.NoError(t, h.repo.CreateReceipt(ctx, rejected))

	ref := pipeline.ExplicitStore(h.store.ID)
	res := h.submit(ref, "", h.barcodeText("SI-0410", testBarcode))
	require.True(t, res.Success, res.Reason)
	require.Equal(t, testBarcode, *h.receipt(res).BarcodeData)

	// once approved the barcode blocks again
	again := h.submit(ref, "", h.barcodeText("SI-0411", testBarcode))
	require.Equal(t, models.ReceiptRejected, again.Status)
	require.Equal(t, "barcode", again.RejectionDetails[0].Field)
}

// staleInvoiceRepo misses invoices in the pre-check, as a concurrent
// submission committing between the check and the insert would.
type staleInvoiceRepo struct {
	*repository.Repository
	creates int
}

func (r *staleInvoiceRepo) InvoiceExists(ctx context.Context, invoiceNo string) (bool, error) {
	return false, nil
}

func (r *staleInvoiceRepo) CreateReceipt(ctx context.Context, rc *models.Receipt) error {
	r.creates++
	return r.Repository.CreateReceipt(ctx, rc)
}

func TestValidateInsertConflictBecomesDuplicateRejection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := "SI-0500"
	require.NoError(t, h.repo.CreateReceipt(ctx, &models.Receipt{
		Status: models.ReceiptApproved, InvoiceNo: &inv, ProcessedAt: h.now.Add(-time.Hour), ImageHash: "seed",
	}))

	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	repo := &staleInvoiceRepo{Repository: h.repo}
	v := pipeline.New(pipeline.Deps{
		Repo:          repo,
		OCR:           h.ocr,
		Storage:       local,
		Settings:      h.settings,
		Fraud:         h.fraud,
		Now:           func() time.Time { return h.now },
		NewRewardCode: func() string { return "RW-RACE0001" },
	})
	h.ocr.text = h.receiptText("0003169685", inv, "504.00")
	res, err := v.Validate(ctx, pipeline.Input{
		Image:         []byte("race"),
		Filename:      "receipt.jpg",
		Store:         pipeline.ExplicitStore(h.store.ID),
		CustomerPhone: "09171234567",
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, models.ReceiptRejected, res.Status)
	require.Equal(t, "invoiceNo", res.RejectionDetails[0].Field)
	require.Equal(t, "duplicate", res.RejectionDetails[0].Issue)
	require.Nil(t, res.VisitID)
	require.Equal(t, 2, repo.creates)

	rc := h.receipt(res)
	require.Nil(t, rc.InvoiceNo)
	require.Equal(t, models.ReceiptRejected, rc.Status)

	_, err = h.repo.FindCustomerByPhone(ctx, "09171234567")
	require.Error(t, err)
}

func TestValidateRejectedReceiptDropsStoredInvoice(t *testing.T) {
	h := newHarness(t)
	ref := pipeline.ExplicitStore(h.store.ID)
	first := h.submit(ref, "", h.receiptText("0003169685", "SI-0600", "504.00"))
	require.True(t, first.Success, first.Reason)

	// rejected on amount before the uniqueness check runs
	h.now = h.now.Add(time.Minute)
	res := h.submit(ref, "", h.receiptText("0003169685", "SI-0600", "50.00"))
	require.Equal(t, models.ReceiptRejected, res.Status)
	require.Equal(t, "totalAmount", res.RejectionDetails[0].Field)
	require.Contains(t, res.Flags, "Invoice number already recorded on another receipt")

	rc := h.receipt(res)
	require.Nil(t, rc.InvoiceNo)
	require.Contains(t, []string(rc.Flags), "Invoice number already recorded on another receipt")
}

package pipeline

import (
	"fmt"
	"strings"

	"loyalty/models"
	"loyalty/pkg/fraud"
	"loyalty/pkg/parser"
)

const (
	reasonNotAReceipt    = "The image does not look like a receipt"
	reasonUnreadable     = "The receipt could not be read"
	reasonOCRFailed      = "We could not process your receipt right now. Please try again or scan the store QR code"
	reasonOCRFlagged     = "The receipt could not be read automatically and was sent for manual review"
	reasonTINMissing     = "TIN not found on receipt; sent for manual review"
	reasonStoreSelection = "Please select the store where you made this purchase"
	reasonStoreNotFound  = "Store not found"
	reasonStoreInactive  = "This store is not accepting receipt uploads"
	reasonStoreNotListed = "This store is not enrolled in the loyalty program"
	reasonFraudReject    = "Receipt failed fraud checks"
	reasonFraudFlag      = "Receipt sent for manual review"
	reasonDupInvoice     = "This receipt has already been submitted"
	reasonDupBarcode     = "This receipt barcode has already been used"
	reasonVisitLimit     = "You have already submitted a receipt recently"
	reasonLowConfidence  = "Receipt text is unclear; sent for manual review"
	reasonMissingFields  = "Some receipt details could not be read; sent for manual review"
	reasonApproved       = "Receipt approved"
	reasonInternal       = "An internal error occurred while validating your receipt. Please try again"
)

// detailForFailure maps a field-validation failure to its customer-facing
// explanation.
func detailForFailure(f *parser.ValidationFailure, validityHours int) RejectionDetail {
	d := RejectionDetail{Found: f.Found, Expected: f.Expected}
	switch f.Kind {
	case parser.FailureTINNotFound:
		d.Field, d.Issue = "TIN", "not_found"
		d.Message = "We could not find the store's TIN on this receipt. Make sure the whole receipt is in the photo."
	case parser.FailureTINMismatch:
		d.Field, d.Issue = "TIN", "mismatch"
		d.Message = fmt.Sprintf("This receipt was issued by a different business (TIN %s).", f.Found)
	case parser.FailureAmountBelowMinimum:
		d.Field, d.Issue = "totalAmount", "below_minimum"
		d.Message = fmt.Sprintf("The minimum purchase is %s; this receipt totals %s.", f.Expected, f.Found)
	case parser.FailureReceiptTooOld:
		d.Field, d.Issue = "date", "too_old"
		d.Message = fmt.Sprintf("Receipts must be uploaded within %d hours of purchase.", validityHours)
	default:
		d.Field, d.Issue = "receipt", "invalid"
		d.Message = f.Error()
	}
	return d
}

// fraudDetails lists each signal that contributed to a fraud score.
func fraudDetails(s fraud.Score) []RejectionDetail {
	var out []RejectionDetail
	if s.DuplicateFound {
		d := RejectionDetail{Field: "image", Issue: "duplicate", Message: "This receipt image has already been submitted."}
		if s.DuplicateReceiptID != nil {
			d.Found = fmt.Sprintf("receipt #%d", *s.DuplicateReceiptID)
		}
		out = append(out, d)
	}
	if s.InvoiceDuplicate {
		out = append(out, RejectionDetail{Field: "invoiceNo", Issue: "duplicate", Message: "This invoice number has already been used."})
	}
	if s.BarcodeDuplicate {
		out = append(out, RejectionDetail{Field: "barcode", Issue: "duplicate", Message: "This receipt barcode has already been used."})
	}
	if s.TamperingScore > 0 {
		out = append(out, RejectionDetail{
			Field: "image", Issue: "tampering", Found: fmt.Sprint(s.TamperingScore),
			Message: "The image shows signs of editing: " + strings.Join(s.Tampering.Indicators, "; ") + ".",
		})
	}
	if s.AIDetectionScore > 0 {
		out = append(out, RejectionDetail{
			Field: "image", Issue: "ai_generated", Found: fmt.Sprint(s.AIDetectionScore),
			Message: "The image may be computer generated: " + strings.Join(s.AIDetection.Indicators, "; ") + ".",
		})
	}
	return out
}

func missingFieldsDetail(missing []string) RejectionDetail {
	return RejectionDetail{
		Field:   "receipt",
		Issue:   "missing_fields",
		Found:   strings.Join(missing, ", "),
		Message: "We could not read: " + strings.Join(missing, ", ") + ".",
	}
}

func internalErrorResult() *Result {
	return &Result{
		Status: models.ReceiptRejected,
		Reason: reasonInternal,
		RejectionDetails: []RejectionDetail{{
			Field: "system", Issue: "internal_error", Message: reasonInternal + ".",
		}},
	}
}

package parser

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Missing-field flags attached to a parsed receipt.
const (
	FlagTINNotFound     = "TIN not found"
	FlagInvoiceNotFound = "Invoice number not found"
	FlagDateNotFound    = "Date not found"
	FlagAmountNotFound  = "Total amount not found"
	FlagBranchNotFound  = "Branch not found"
)

// ParsedReceipt is the structured view of one OCR result.
type ParsedReceipt struct {
	TIN         string              `json:"tin,omitempty"`
	InvoiceNo   string              `json:"invoiceNo,omitempty"`
	Date        *time.Time          `json:"-"`
	TotalAmount decimal.NullDecimal `json:"totalAmount"`
	BranchText  string              `json:"branchText,omitempty"`
	BarcodeData string              `json:"barcodeData,omitempty"`
	RawText     string              `json:"rawText"`
	Confidence  Confidence          `json:"confidence"`
	Flags       []string            `json:"flags"`
}

func (p ParsedReceipt) MarshalJSON() ([]byte, error) {
	type alias ParsedReceipt
	return json.Marshal(struct {
		alias
		Date string `json:"date,omitempty"`
	}{alias: alias(p), Date: FormatDate(p.Date)})
}

// ParseReceiptText runs every extractor once and grades the result.
func ParseReceiptText(ocrText string) ParsedReceipt {
	p := ParsedReceipt{
		TIN:         ExtractTIN(ocrText),
		InvoiceNo:   ExtractInvoiceNo(ocrText),
		Date:        ExtractDate(ocrText),
		TotalAmount: ExtractTotalAmount(ocrText),
		BranchText:  ExtractBranchText(ocrText, DefaultBranchLines),
		BarcodeData: ExtractBarcodeData(ocrText),
		RawText:     ocrText,
		Flags:       []string{},
	}
	found := 0
	for _, f := range []struct {
		ok   bool
		flag string
	}{
		{p.TIN != "", FlagTINNotFound},
		{p.InvoiceNo != "", FlagInvoiceNotFound},
		{p.Date != nil, FlagDateNotFound},
		{p.TotalAmount.Valid, FlagAmountNotFound},
		{p.BranchText != "", FlagBranchNotFound},
	} {
		if f.ok {
			found++
		} else {
			p.Flags = append(p.Flags, f.flag)
		}
	}
	p.Confidence = ConfidenceFor(found)
	return p
}

// ConfidenceFor maps the number of extracted fields (out of five) to a tier.
func ConfidenceFor(found int) Confidence {
	switch {
	case found >= 4:
		return ConfidenceHigh
	case found >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// HasKeyField reports whether TIN, invoice number or amount was extracted.
func (p ParsedReceipt) HasKeyField() bool {
	return p.TIN != "" || p.InvoiceNo != "" || p.TotalAmount.Valid
}

// MissingCriticalFields lists which of TIN, invoice number, date and total
// amount could not be extracted.
func (p ParsedReceipt) MissingCriticalFields() []string {
	var out []string
	if p.TIN == "" {
		out = append(out, "TIN")
	}
	if p.InvoiceNo == "" {
		out = append(out, "invoice number")
	}
	if p.Date == nil {
		out = append(out, "date")
	}
	if !p.TotalAmount.Valid {
		out = append(out, "total amount")
	}
	return out
}

package pipeline

import (
	"github.com/shopspring/decimal"

	"loyalty/models"
	"loyalty/pkg/fraud"
	"loyalty/pkg/parser"
)

// StoreRef says how the receipt's store is determined: an explicit store ID
// (QR code scan) or resolution from the TIN printed on the receipt.
type StoreRef struct {
	id       uint
	explicit bool
}

func ExplicitStore(id uint) StoreRef { return StoreRef{id: id, explicit: true} }

func ResolveByTIN() StoreRef { return StoreRef{} }

// ID returns the explicit store ID, if any.
func (r StoreRef) ID() (uint, bool) { return r.id, r.explicit }

type Input struct {
	Image         []byte
	Filename      string
	Store         StoreRef
	CustomerPhone string
	CustomerName  string
}

// RejectionDetail explains one reason a receipt was rejected or flagged, in
// a form that can be shown to the customer as is.
type RejectionDetail struct {
	Field    string `json:"field"`
	Issue    string `json:"issue"`
	Found    string `json:"found,omitempty"`
	Expected string `json:"expected,omitempty"`
	Message  string `json:"message"`
}

// StoreCandidate is offered when several stores share a TIN.
type StoreCandidate struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Branch  string `json:"branch,omitempty"`
	City    string `json:"city,omitempty"`
	Address string `json:"address,omitempty"`
}

func candidateFrom(s models.Store) StoreCandidate {
	return StoreCandidate{ID: s.ID, Name: s.Name, Branch: s.Branch, City: s.City, Address: s.Address}
}

// Result is the outcome of one validation attempt.
type Result struct {
	Success          bool                  `json:"success"`
	Status           string                `json:"status"`
	Reason           string                `json:"reason"`
	RejectionDetails []RejectionDetail     `json:"rejectionDetails,omitempty"`
	Flags            []string              `json:"flags,omitempty"`
	ReceiptID        *uint                 `json:"receiptId,omitempty"`
	StoreID          *uint                 `json:"storeId,omitempty"`
	VisitID          *uint                 `json:"visitId,omitempty"`
	RewardID         *uint                 `json:"rewardId,omitempty"`
	RewardCode       string                `json:"rewardCode,omitempty"`
	VisitCount       *int                  `json:"visitCount,omitempty"`
	VisitsInPeriod   *int                  `json:"visitsInPeriod,omitempty"`
	VisitsNeeded     *int                  `json:"visitsNeeded,omitempty"`
	Parsed           *parser.ParsedReceipt `json:"parsed,omitempty"`
	Candidates       []StoreCandidate      `json:"candidates,omitempty"`
	FraudScore       *fraud.Score          `json:"fraudScore,omitempty"`
}

func intPtr(n int) *int    { return &n }
func uintPtr(n uint) *uint { return &n }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

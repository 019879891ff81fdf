package fraud

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"loyalty/models"
)

const (
	weightDuplicateImage   = 50
	weightDuplicateInvoice = 30
	weightDuplicateBarcode = 30
	weightTampering        = 0.7
	weightAIDetection      = 0.5
)

// DuplicateStatuses are the receipt states that still claim their image,
// invoice number or barcode.
var DuplicateStatuses = []string{models.ReceiptApproved, models.ReceiptPending, models.ReceiptFlagged}

// DuplicateFinder looks up earlier receipts sharing an identifier. The
// returned bool reports whether a match exists.
type DuplicateFinder interface {
	FindReceiptByImageHash(ctx context.Context, hash string, statuses []string, excludeID uint) (uint, bool, error)
	FindReceiptByInvoiceNo(ctx context.Context, invoiceNo string, statuses []string, excludeID uint) (uint, bool, error)
	FindReceiptByBarcode(ctx context.Context, barcode string, statuses []string, excludeID uint) (uint, bool, error)
}

type Input struct {
	Image       []byte
	InvoiceNo   string
	BarcodeData string
	// ExcludeID skips the receipt being re-scored.
	ExcludeID uint
}

type Score struct {
	OverallScore       float64           `json:"overallScore"`
	TamperingScore     int               `json:"tamperingScore"`
	AIDetectionScore   int               `json:"aiDetectionScore"`
	Flags              []string          `json:"flags"`
	ImageHash          string            `json:"imageHash"`
	DuplicateFound     bool              `json:"duplicateFound"`
	DuplicateReceiptID *uint             `json:"duplicateReceiptId,omitempty"`
	InvoiceDuplicate   bool              `json:"invoiceDuplicate"`
	BarcodeDuplicate   bool              `json:"barcodeDuplicate"`
	Tampering          TamperingResult   `json:"-"`
	AIDetection        AIDetectionResult `json:"-"`
}

// Analyzer combines duplicate lookups with the image heuristics.
type Analyzer struct {
	finder DuplicateFinder
	logger *zap.Logger
}

// NewAnalyzer returns an analyzer. A nil finder skips duplicate lookups.
func NewAnalyzer(finder DuplicateFinder, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{finder: finder, logger: logger}
}

// CalculateFraudScore scores one submission. Duplicate lookup failures are
// returned; image heuristics never fail.
func (a *Analyzer) CalculateFraudScore(ctx context.Context, in Input) (Score, error) {
	s := Score{Flags: []string{}}
	// decoded once and shared by the hash and both heuristics
	d, decodeErr := decodeImage(in.Image)
	hash, err := imageHash(in.Image, d, decodeErr)
	if err != nil {
		return s, err
	}
	s.ImageHash = hash

	var overall float64
	if a.finder != nil {
		// invoice and barcode matches ignore the receipt already counted as an image duplicate
		exclude := in.ExcludeID
		id, found, err := a.finder.FindReceiptByImageHash(ctx, hash, DuplicateStatuses, in.ExcludeID)
		if err != nil {
			return s, fmt.Errorf("image hash lookup: %w", err)
		}
		if found {
			s.DuplicateFound = true
			s.DuplicateReceiptID = &id
			exclude = id
			overall += weightDuplicateImage
			s.Flags = append(s.Flags, fmt.Sprintf("Duplicate image of receipt #%d", id))
		}
		if in.InvoiceNo != "" {
			id, found, err := a.finder.FindReceiptByInvoiceNo(ctx, in.InvoiceNo, DuplicateStatuses, exclude)
			if err != nil {
				return s, fmt.Errorf("invoice lookup: %w", err)
			}
			if found {
				s.InvoiceDuplicate = true
				overall += weightDuplicateInvoice
				s.Flags = append(s.Flags, fmt.Sprintf("Invoice number already used by receipt #%d", id))
			}
		}
		if in.BarcodeData != "" {
			id, found, err := a.finder.FindReceiptByBarcode(ctx, in.BarcodeData, DuplicateStatuses, exclude)
			if err != nil {
				return s, fmt.Errorf("barcode lookup: %w", err)
			}
			if found {
				s.BarcodeDuplicate = true
				overall += weightDuplicateBarcode
				s.Flags = append(s.Flags, fmt.Sprintf("Barcode already used by receipt #%d", id))
			}
		}
	}

	s.Tampering = detectTampering(in.Image, d, decodeErr)
	s.TamperingScore = s.Tampering.Score
	overall += float64(s.TamperingScore) * weightTampering
	s.Flags = append(s.Flags, s.Tampering.Indicators...)

	s.AIDetection = detectAIGenerated(in.Image, d, decodeErr)
	s.AIDetectionScore = s.AIDetection.Probability
	overall += float64(s.AIDetectionScore) * weightAIDetection
	s.Flags = append(s.Flags, s.AIDetection.Indicators...)

	s.OverallScore = math.Round(math.Min(overall, 100)*100) / 100
	a.logger.Debug("fraud score",
		zap.Float64("overall", s.OverallScore),
		zap.Int("tampering", s.TamperingScore),
		zap.Int("ai", s.AIDetectionScore),
		zap.Bool("duplicate_image", s.DuplicateFound))
	return s, nil
}

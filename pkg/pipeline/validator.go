// Package pipeline decides the fate of one uploaded receipt photo: OCR, store
// resolution, field rules, fraud scoring, uniqueness, visit limits, approval
// and reward issuing. Every terminal outcome is persisted as a receipt row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"loyalty/models"
	"loyalty/pkg/fraud"
	"loyalty/pkg/ocr"
	"loyalty/pkg/parser"
	"loyalty/pkg/repository"
	"loyalty/pkg/settings"
	"loyalty/pkg/storage"
)

const (
	fraudRejectThreshold     = 70
	fraudFlagThreshold       = 40
	tamperingFlagThreshold   = 50
	flagInvoiceAlreadyStored = "Invoice number already recorded on another receipt"
	flagBarcodeAlreadyStored = "Barcode already recorded on another receipt"
)

type Repository interface {
	FindStoreByID(ctx context.Context, id uint) (*models.Store, error)
	FindUploadableStoresByTIN(ctx context.Context, tin string) ([]models.Store, error)
	CreateReceipt(ctx context.Context, rc *models.Receipt) error
	FindReceiptByID(ctx context.Context, id uint) (*models.Receipt, error)
	UpdateReceiptIf(ctx context.Context, id uint, from []string, updates map[string]interface{}) (bool, error)
	InvoiceExists(ctx context.Context, invoiceNo string) (bool, error)
	BarcodeInUse(ctx context.Context, barcode string) (bool, error)
	HasApprovedSince(ctx context.Context, phone string, since time.Time) (bool, error)
	ApprovedReceiptTimes(ctx context.Context, phone string) ([]time.Time, error)
	FindOrCreateCustomer(ctx context.Context, phone, name string) (*models.Customer, error)
	RecordVisit(ctx context.Context, customerID, storeID, receiptID uint, at time.Time) (*models.Visit, error)
	MarkVisitRewardEarned(ctx context.Context, visitID uint) error
	HasActiveReward(ctx context.Context, customerID, storeID uint) (bool, error)
	CreateReward(ctx context.Context, rw *models.Reward) error
}

type FraudScorer interface {
	CalculateFraudScore(ctx context.Context, in fraud.Input) (fraud.Score, error)
}

type SettingsGetter interface {
	Get(ctx context.Context) settings.Settings
}

type Deps struct {
	Repo     Repository
	OCR      ocr.Client
	Storage  storage.Storage
	Settings SettingsGetter
	Fraud    FraudScorer
	Logger   *zap.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
	// NewRewardCode defaults to rewards.GenerateCode.
	NewRewardCode func() string
}

type Validator struct {
	repo     Repository
	ocr      ocr.Client
	storage  storage.Storage
	settings SettingsGetter
	fraud    FraudScorer
	logger   *zap.Logger
	now      func() time.Time
	newCode  func() string
}

func New(d Deps) *Validator {
	v := &Validator{
		repo:     d.Repo,
		ocr:      d.OCR,
		storage:  d.Storage,
		settings: d.Settings,
		fraud:    d.Fraud,
		logger:   d.Logger,
		now:      d.Now,
		newCode:  d.NewRewardCode,
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	if v.now == nil {
		v.now = func() time.Time { return time.Now().UTC() }
	}
	if v.newCode == nil {
		v.newCode = defaultRewardCode
	}
	return v
}

// attempt carries what earlier stages learned to the later ones.
type attempt struct {
	in       Input
	phone    string
	now      time.Time
	settings settings.Settings
	text     string
	parsed   parser.ParsedReceipt
	parsedOK bool
	store    *models.Store
	imageURL string
	score    *fraud.Score
}

// Validate runs the whole pipeline. Every business outcome is a Result with
// a nil error. An infrastructure failure outside the OCR stage yields the
// generic internal-error Result together with the cause.
func (v *Validator) Validate(ctx context.Context, in Input) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("receipt validation panicked", zap.Any("panic", r), zap.Stack("stack"))
			res, err = internalErrorResult(), fmt.Errorf("validation panic: %v", r)
		}
	}()
	a := &attempt{
		in:    in,
		phone: strings.TrimSpace(in.CustomerPhone),
		now:   v.now(),
	}
	a.settings = v.settings.Get(ctx)
	res, err = v.run(ctx, a)
	if err != nil {
		v.logger.Error("receipt validation failed", zap.Error(err))
		return internalErrorResult(), err
	}
	v.logger.Info("receipt validated",
		zap.String("status", res.Status),
		zap.String("reason", res.Reason),
		zap.Uintp("receipt_id", res.ReceiptID))
	return res, nil
}

func (v *Validator) run(ctx context.Context, a *attempt) (*Result, error) {
	if id, ok := a.in.Store.ID(); ok {
		// store context for OCR failure handling; validated properly in stage 3
		if s, err := v.repo.FindStoreByID(ctx, id); err == nil {
			a.store = s
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if res, done, err := v.extractText(ctx, a); done || err != nil {
		return res, err
	}

	if _, explicit := a.in.Store.ID(); !explicit {
		if res, done, err := v.resolveStore(ctx, a); done || err != nil {
			return res, err
		}
	}

	if res, done, err := v.checkStore(ctx, a); done || err != nil {
		return res, err
	}

	url, err := v.storage.Save(ctx, a.in.Image, storage.BucketFor(&a.store.ID), a.in.Filename)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	a.imageURL = url

	rules := settings.EffectiveRules(a.settings, a.store)
	vr := parser.ValidateParsedReceipt(a.parsed, parser.Rules{
		ExpectedTIN:    a.store.TIN,
		ExpectedBranch: a.store.Branch,
		MinAmount:      nullDecimal(rules.MinAmount),
		MaxAgeDays:     rules.MaxAgeDays(),
	}, a.now)
	if !vr.Valid {
		return v.finish(ctx, a, outcome{
			status:  models.ReceiptRejected,
			reason:  vr.Reason(),
			details: []RejectionDetail{detailForFailure(vr.Failure, rules.ValidityHours)},
			flags:   vr.Warnings,
		})
	}

	if res, done, err := v.scoreFraud(ctx, a, vr.Warnings); done || err != nil {
		return res, err
	}

	if res, done, err := v.checkUniqueness(ctx, a); done || err != nil {
		return res, err
	}

	if a.phone != "" && a.settings.VisitLimitHours > 0 {
		since := a.now.Add(-time.Duration(a.settings.VisitLimitHours) * time.Hour)
		recent, err := v.repo.HasApprovedSince(ctx, a.phone, since)
		if err != nil {
			return nil, err
		}
		if recent {
			return v.finish(ctx, a, outcome{
				status: models.ReceiptRejected,
				reason: reasonVisitLimit,
				details: []RejectionDetail{{
					Field: "visitLimit", Issue: "too_soon",
					Expected: fmt.Sprintf("%d hours", a.settings.VisitLimitHours),
					Message:  fmt.Sprintf("You can submit one approved receipt every %d hours.", a.settings.VisitLimitHours),
				}},
			})
		}
	}

	if a.parsed.Confidence == parser.ConfidenceLow {
		return v.finish(ctx, a, outcome{
			status: models.ReceiptFlagged,
			reason: reasonLowConfidence,
			flags:  append([]string{"Low OCR confidence"}, vr.Warnings...),
			details: []RejectionDetail{{
				Field: "receipt", Issue: "low_confidence",
				Message: "The receipt text was hard to read, so a person will check it.",
			}},
		})
	}
	if missing := a.parsed.MissingCriticalFields(); len(missing) > 0 {
		return v.finish(ctx, a, outcome{
			status:  models.ReceiptFlagged,
			reason:  reasonMissingFields,
			flags:   append([]string{"Missing fields: " + strings.Join(missing, ", ")}, vr.Warnings...),
			details: []RejectionDetail{missingFieldsDetail(missing)},
		})
	}

	return v.approve(ctx, a, vr.Warnings)
}

// extractText is stage 1. OCR infrastructure failures never propagate: they
// become a flag when the store is known and a retry message otherwise.
func (v *Validator) extractText(ctx context.Context, a *attempt) (*Result, bool, error) {
	text, err := v.ocr.ExtractText(ctx, a.in.Image)
	if err != nil {
		v.logger.Warn("ocr failed", zap.Error(err), zap.Bool("unavailable", errors.Is(err, ocr.ErrUnavailable)))
		if a.store != nil {
			res, err := v.finish(ctx, a, outcome{
				status:        models.ReceiptFlagged,
				reason:        reasonOCRFlagged,
				flags:         []string{ocrFailureFlag(err)},
				skipInvoice:   true,
				bestEffortImg: true,
			})
			return res, true, err
		}
		res, err := v.finish(ctx, a, outcome{
			status: models.ReceiptRejected,
			reason: reasonOCRFailed,
			details: []RejectionDetail{{
				Field: "image", Issue: "processing_failed",
				Message: reasonOCRFailed + ".",
			}},
			flags:         []string{ocrFailureFlag(err)},
			skipInvoice:   true,
			bestEffortImg: true,
		})
		return res, true, err
	}
	a.text = text
	a.parsed = parser.ParseReceiptText(text)
	a.parsedOK = true

	if !ocr.LooksLikeReceipt(text) {
		a.store = nil
		res, err := v.finish(ctx, a, outcome{
			status: models.ReceiptRejected,
			reason: reasonNotAReceipt,
			details: []RejectionDetail{{
				Field: "image", Issue: "not_a_receipt",
				Message: "Please upload a clear photo of a printed receipt.",
			}},
			skipInvoice:   true,
			bestEffortImg: true,
		})
		return res, true, err
	}

	if len(strings.TrimSpace(text)) < ocr.MinReadableTextLength && !a.parsed.HasKeyField() {
		detail := RejectionDetail{
			Field: "image", Issue: "unreadable",
			Message: "The receipt text could not be read. Please retake the photo in good light.",
		}
		status := models.ReceiptRejected
		if a.store != nil {
			status = models.ReceiptFlagged
		}
		res, err := v.finish(ctx, a, outcome{
			status:        status,
			reason:        reasonUnreadable,
			details:       []RejectionDetail{detail},
			skipInvoice:   true,
			bestEffortImg: true,
		})
		return res, true, err
	}
	return nil, false, nil
}

// resolveStore is stage 2, used when no store ID came with the upload.
func (v *Validator) resolveStore(ctx context.Context, a *attempt) (*Result, bool, error) {
	tin := a.parsed.TIN
	if tin == "" {
		res, err := v.finish(ctx, a, outcome{
			status: models.ReceiptFlagged,
			reason: reasonTINMissing,
			flags:  []string{parser.FlagTINNotFound},
			details: []RejectionDetail{{
				Field: "TIN", Issue: "not_found",
				Message: "We could not find a TIN on this receipt, so a person will check it.",
			}},
			bestEffortImg: true,
		})
		return res, true, err
	}
	if !settings.IsTINAllowed(a.settings, tin) {
		res, err := v.finish(ctx, a, outcome{
			status: models.ReceiptRejected,
			reason: reasonStoreNotListed,
			details: []RejectionDetail{{
				Field: "TIN", Issue: "not_allowed", Found: tin,
				Message: "Receipts from this business are not part of the loyalty program.",
			}},
			bestEffortImg: true,
		})
		return res, true, err
	}
	stores, err := v.repo.FindUploadableStoresByTIN(ctx, tin)
	if err != nil {
		return nil, true, err
	}
	if len(stores) == 1 {
		a.store = &stores[0]
		return nil, false, nil
	}
	candidates := make([]StoreCandidate, 0, len(stores))
	for _, s := range stores {
		candidates = append(candidates, candidateFrom(s))
	}
	res, err := v.finish(ctx, a, outcome{
		status:        models.ReceiptNeedsStoreSelection,
		reason:        reasonStoreSelection,
		candidates:    candidates,
		skipInvoice:   true,
		bestEffortImg: true,
	})
	return res, true, err
}

// checkStore is stage 3.
func (v *Validator) checkStore(ctx context.Context, a *attempt) (*Result, bool, error) {
	reject := func(reason, issue string) (*Result, bool, error) {
		res, err := v.finish(ctx, a, outcome{
			status: models.ReceiptRejected,
			reason: reason,
			details: []RejectionDetail{{
				Field: "store", Issue: issue, Message: reason + ".",
			}},
			bestEffortImg: true,
		})
		return res, true, err
	}
	if a.store == nil {
		return reject(reasonStoreNotFound, "not_found")
	}
	if !a.store.Active || !a.store.AllowReceiptUploads {
		return reject(reasonStoreInactive, "inactive")
	}
	if !settings.IsTINAllowed(a.settings, a.store.TIN) {
		return reject(reasonStoreNotListed, "not_allowed")
	}
	return nil, false, nil
}

// scoreFraud is stage 6.
func (v *Validator) scoreFraud(ctx context.Context, a *attempt, warnings []string) (*Result, bool, error) {
	score, err := v.fraud.CalculateFraudScore(ctx, fraud.Input{
		Image:       a.in.Image,
		InvoiceNo:   a.parsed.InvoiceNo,
		BarcodeData: a.parsed.BarcodeData,
	})
	if err != nil {
		return nil, true, fmt.Errorf("fraud score: %w", err)
	}
	a.score = &score
	switch {
	case score.OverallScore > fraudRejectThreshold:
		res, err := v.finish(ctx, a, outcome{
			status:  models.ReceiptRejected,
			reason:  reasonFraudReject,
			details: fraudDetails(score),
			flags:   warnings,
		})
		return res, true, err
	case score.OverallScore > fraudFlagThreshold || score.TamperingScore > tamperingFlagThreshold:
		res, err := v.finish(ctx, a, outcome{
			status:  models.ReceiptFlagged,
			reason:  reasonFraudFlag,
			details: fraudDetails(score),
			flags:   warnings,
		})
		return res, true, err
	}
	return nil, false, nil
}

// checkUniqueness is stage 7. The insert in approve stays authoritative.
func (v *Validator) checkUniqueness(ctx context.Context, a *attempt) (*Result, bool, error) {
	if inv := a.parsed.InvoiceNo; inv != "" {
		exists, err := v.repo.InvoiceExists(ctx, inv)
		if err != nil {
			return nil, true, err
		}
		if exists {
			res, err := v.finish(ctx, a, duplicateInvoice(inv))
			return res, true, err
		}
	}
	if bc := a.parsed.BarcodeData; bc != "" {
		inUse, err := v.repo.BarcodeInUse(ctx, bc)
		if err != nil {
			return nil, true, err
		}
		if inUse {
			res, err := v.finish(ctx, a, duplicateBarcode(bc))
			return res, true, err
		}
	}
	return nil, false, nil
}

func ocrFailureFlag(err error) string {
	if errors.Is(err, ocr.ErrUnavailable) {
		return "OCR unavailable"
	}
	return "OCR failed"
}

func duplicateInvoice(inv string) outcome {
	return outcome{
		status: models.ReceiptRejected,
		reason: reasonDupInvoice,
		details: []RejectionDetail{{
			Field: "invoiceNo", Issue: "duplicate", Found: inv,
			Message: "This invoice number has already been submitted and cannot be used again.",
		}},
		skipInvoice: true,
	}
}

func duplicateBarcode(bc string) outcome {
	return outcome{
		status: models.ReceiptRejected,
		reason: reasonDupBarcode,
		details: []RejectionDetail{{
			Field: "barcode", Issue: "duplicate", Found: bc,
			Message: "This receipt barcode has already been used.",
		}},
	}
}

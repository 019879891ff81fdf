package parser

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rules are the store-specific expectations a parsed receipt is checked
// against. Zero values disable a rule.
type Rules struct {
	ExpectedTIN    string
	ExpectedBranch string
	MinAmount      decimal.NullDecimal
	MaxAgeDays     int
}

type FailureKind string

const (
	FailureTINNotFound        FailureKind = "tin_not_found"
	FailureTINMismatch        FailureKind = "tin_mismatch"
	FailureAmountBelowMinimum FailureKind = "amount_below_minimum"
	FailureReceiptTooOld      FailureKind = "receipt_too_old"
)

// ValidationFailure is the first rule a receipt broke. Found and Expected
// are display strings.
type ValidationFailure struct {
	Kind     FailureKind
	Found    string
	Expected string
}

func (f *ValidationFailure) Error() string {
	switch f.Kind {
	case FailureTINNotFound:
		return "TIN not found on receipt"
	case FailureTINMismatch:
		return fmt.Sprintf("TIN mismatch: expected %s, found %s", f.Expected, f.Found)
	case FailureAmountBelowMinimum:
		return fmt.Sprintf("Amount %s is below minimum %s", f.Found, f.Expected)
	case FailureReceiptTooOld:
		return fmt.Sprintf("Receipt is %s days old (maximum %s)", f.Found, f.Expected)
	}
	return string(f.Kind)
}

type ValidationResult struct {
	Valid    bool
	Failure  *ValidationFailure
	Warnings []string
}

// Reason is the one-line summary of the failure ("" when valid).
func (r ValidationResult) Reason() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Error()
}

// ValidateParsedReceipt checks the rules in a fixed order and stops at the
// first failure. A branch mismatch only produces a warning.
func ValidateParsedReceipt(p ParsedReceipt, rules Rules, now time.Time) ValidationResult {
	res := ValidationResult{Valid: true}
	fail := func(f *ValidationFailure) ValidationResult {
		res.Valid = false
		res.Failure = f
		return res
	}

	if rules.ExpectedTIN != "" {
		if p.TIN == "" {
			return fail(&ValidationFailure{Kind: FailureTINNotFound, Expected: NormalizeTIN(rules.ExpectedTIN)})
		}
		if NormalizeTIN(p.TIN) != NormalizeTIN(rules.ExpectedTIN) {
			return fail(&ValidationFailure{Kind: FailureTINMismatch, Found: NormalizeTIN(p.TIN), Expected: NormalizeTIN(rules.ExpectedTIN)})
		}
	}

	if rules.ExpectedBranch != "" && p.BranchText != "" && !branchMatches(p.BranchText, rules.ExpectedBranch) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Branch mismatch: expected %s, found %s", rules.ExpectedBranch, p.BranchText))
	}

	if rules.MinAmount.Valid && p.TotalAmount.Valid && p.TotalAmount.Decimal.LessThan(rules.MinAmount.Decimal) {
		return fail(&ValidationFailure{
			Kind:     FailureAmountBelowMinimum,
			Found:    p.TotalAmount.Decimal.StringFixed(2),
			Expected: rules.MinAmount.Decimal.StringFixed(2),
		})
	}

	if rules.MaxAgeDays > 0 && p.Date != nil {
		if age := AgeInDays(*p.Date, now); age > rules.MaxAgeDays {
			return fail(&ValidationFailure{
				Kind:     FailureReceiptTooOld,
				Found:    fmt.Sprint(age),
				Expected: fmt.Sprintf("%d days", rules.MaxAgeDays),
			})
		}
	}
	return res
}

// AgeInDays is the number of whole days between the receipt date and now.
func AgeInDays(date, now time.Time) int {
	return int(math.Floor(now.Sub(date).Hours() / 24))
}

func branchMatches(found, expected string) bool {
	f := strings.ToLower(strings.TrimSpace(found))
	e := strings.ToLower(strings.TrimSpace(expected))
	return strings.Contains(f, e) || strings.Contains(e, f)
}

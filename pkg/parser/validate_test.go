package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var validateNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func parsedWith(tin, amount string, date *time.Time, branch string) ParsedReceipt {
	p := ParsedReceipt{TIN: tin, BranchText: branch, Date: date}
	if amount != "" {
		p.TotalAmount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return p
}

func dateOf(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestValidateTINRules(t *testing.T) {
	rules := Rules{ExpectedTIN: "000-316-968-5"}

	res := ValidateParsedReceipt(parsedWith("", "200", nil, ""), rules, validateNow)
	if res.Valid || res.Failure.Kind != FailureTINNotFound {
		t.Fatalf("expected TIN not found, got %+v", res)
	}

	res = ValidateParsedReceipt(parsedWith("9999999999", "200", nil, ""), rules, validateNow)
	if res.Valid || res.Failure.Kind != FailureTINMismatch {
		t.Fatalf("expected TIN mismatch, got %+v", res)
	}
	if res.Failure.Found != "9999999999" || res.Failure.Expected != "0003169685" {
		t.Fatalf("unexpected mismatch values %+v", res.Failure)
	}

	res = ValidateParsedReceipt(parsedWith("0003169685", "200", nil, ""), rules, validateNow)
	if !res.Valid {
		t.Fatalf("expected normalized TINs to match, got %s", res.Reason())
	}
}

func TestValidateBranchMismatchIsWarning(t *testing.T) {
	res := ValidateParsedReceipt(parsedWith("0003169685", "200", nil, "Cebu City"), Rules{ExpectedBranch: "Makati"}, validateNow)
	if !res.Valid {
		t.Fatalf("branch mismatch must not invalidate: %s", res.Reason())
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning got %v", res.Warnings)
	}
	res = ValidateParsedReceipt(parsedWith("", "200", nil, "Makati City"), Rules{ExpectedBranch: "makati"}, validateNow)
	if len(res.Warnings) != 0 {
		t.Fatalf("expected case-insensitive match, got %v", res.Warnings)
	}
}

func TestValidateMinimumAmount(t *testing.T) {
	rules := Rules{MinAmount: decimal.NewNullDecimal(decimal.NewFromInt(100))}
	res := ValidateParsedReceipt(parsedWith("", "85", nil, ""), rules, validateNow)
	if res.Valid || res.Failure.Kind != FailureAmountBelowMinimum {
		t.Fatalf("expected amount below minimum got %+v", res)
	}
	if res.Failure.Found != "85.00" || res.Failure.Expected != "100.00" {
		t.Fatalf("unexpected values %+v", res.Failure)
	}
	if res.Reason() != "Amount 85.00 is below minimum 100.00" {
		t.Fatalf("unexpected reason %q", res.Reason())
	}
	if res := ValidateParsedReceipt(parsedWith("", "", nil, ""), rules, validateNow); !res.Valid {
		t.Fatalf("missing amount is left to the review gate, got %s", res.Reason())
	}
}

func TestValidateReceiptAge(t *testing.T) {
	rules := Rules{MaxAgeDays: 1}
	if res := ValidateParsedReceipt(parsedWith("", "", dateOf(2024, 3, 9), ""), rules, validateNow); !res.Valid {
		t.Fatalf("yesterday's receipt should pass: %s", res.Reason())
	}
	res := ValidateParsedReceipt(parsedWith("", "", dateOf(2024, 3, 1), ""), rules, validateNow)
	if res.Valid || res.Failure.Kind != FailureReceiptTooOld || res.Failure.Found != "9" {
		t.Fatalf("expected receipt too old (9 days) got %+v", res)
	}
}

func TestValidateFirstFailureWins(t *testing.T) {
	rules := Rules{ExpectedTIN: "0003169685", MinAmount: decimal.NewNullDecimal(decimal.NewFromInt(100)), MaxAgeDays: 1}
	res := ValidateParsedReceipt(parsedWith("1111111111", "5", dateOf(2020, 1, 1), ""), rules, validateNow)
	if res.Failure == nil || res.Failure.Kind != FailureTINMismatch {
		t.Fatalf("expected TIN mismatch to be reported first, got %+v", res.Failure)
	}
}

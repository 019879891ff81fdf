package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	moneyRE     = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+\.\d{2}\b|\d+`)
	decimalRE   = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\.\d{2}\b|\d+\.\d{2}\b`)
	asteriskRE  = regexp.MustCompile(`\*\s*(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`)
	subtotalRE  = regexp.MustCompile(`(?i)\bSUB[\s-]?TOTAL\b`)
	taxRE       = regexp.MustCompile(`(?i)\b(?:TAX|VAT)\b`)
	taxIgnoreRE = regexp.MustCompile(`(?i)sales|exempt|zero|\bTIN\b|\bREG`)
	totalRE     = regexp.MustCompile(`(?i)\b(?:TOTAL|T0TAL|TOTA1|TOTAI|T0TAI|IOTAL|TOTL|TQTAL|AMOUNT\s+DUE)\b`)
	totalSkipRE = regexp.MustCompile(`(?i)\b(?:QTY|ITEMS?|DISCOUNTS?|SAVINGS)\b|TOTAL\s+(?:TAX|VAT)\b`)

	// calculated totals above subtotal*1.25 imply an absurd tax rate
	maxTaxRatio = decimal.RequireFromString("1.25")

	decimalFallbackMin = decimal.NewFromInt(200)
	decimalFallbackMax = decimal.NewFromInt(10000)
	numberFallbackMin  = decimal.NewFromInt(100)
	numberFallbackMax  = decimal.NewFromInt(1000000)
)

// AmountContext is the shared state of the total-amount cascade: the receipt
// lines plus the SUBTOTAL and TAX figures discovered up front.
type AmountContext struct {
	Lines    []string
	Subtotal decimal.NullDecimal
	Tax      decimal.NullDecimal
}

// NewAmountContext normalizes the text and locates SUBTOTAL and TAX amounts.
func NewAmountContext(text string) *AmountContext {
	ac := &AmountContext{Lines: splitLines(text)}
	ac.Subtotal = ac.keywordAmount(func(l string) bool { return subtotalRE.MatchString(l) })
	ac.Tax = ac.keywordAmount(func(l string) bool {
		return taxRE.MatchString(l) && !taxIgnoreRE.MatchString(l) && !subtotalRE.MatchString(l) && !totalRE.MatchString(l)
	})
	return ac
}

// CalculatedTotal is subtotal+tax when both were found.
func (ac *AmountContext) CalculatedTotal() decimal.NullDecimal {
	if !ac.Subtotal.Valid || !ac.Tax.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(ac.Subtotal.Decimal.Add(ac.Tax.Decimal))
}

// keywordAmount returns the amount on the first matching line, looking at the
// next two lines when the keyword line itself carries no amount.
func (ac *AmountContext) keywordAmount(match func(string) bool) decimal.NullDecimal {
	for i, l := range ac.Lines {
		if !match(l) {
			continue
		}
		for j := i; j < len(ac.Lines) && j <= i+2; j++ {
			if j > i && (subtotalRE.MatchString(ac.Lines[j]) || totalRE.MatchString(ac.Lines[j])) {
				break
			}
			if v, ok := currencyOnLine(ac.Lines[j]); ok {
				return decimal.NewNullDecimal(v)
			}
		}
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{}
}

// AmountStrategy is one named step of the total-amount cascade.
type AmountStrategy struct {
	Name string
	Find func(ac *AmountContext) (decimal.Decimal, bool)
}

var AmountStrategies = []AmountStrategy{
	{Name: "total-line", Find: totalLineAmount},
	{Name: "subtotal-plus-tax", Find: subtotalPlusTax},
	{Name: "largest-asterisk", Find: largestAsteriskAmount},
	{Name: "largest-decimal", Find: largestDecimalAmount},
	{Name: "largest-number", Find: largestNumber},
}

// ExtractTotalAmount runs the amount cascade over the receipt text.
func ExtractTotalAmount(text string) decimal.NullDecimal {
	ac := NewAmountContext(text)
	for _, s := range AmountStrategies {
		if v, ok := s.Find(ac); ok {
			return decimal.NewNullDecimal(v.Round(2))
		}
	}
	return decimal.NullDecimal{}
}

// totalLineAmount reads the amount from the first TOTAL line (or one of the
// two lines after it). A total that does not exceed the subtotal is treated
// as a misread and discarded.
func totalLineAmount(ac *AmountContext) (decimal.Decimal, bool) {
	for i, l := range ac.Lines {
		if !totalRE.MatchString(l) || subtotalRE.MatchString(l) || totalSkipRE.MatchString(l) {
			continue
		}
		v, ok := currencyOnLine(l)
		if !ok {
			v, ok = plainNumberOnLine(l)
		}
		for j := i + 1; !ok && j < len(ac.Lines) && j <= i+2; j++ {
			v, ok = currencyOnLine(ac.Lines[j])
		}
		if !ok {
			continue
		}
		if ac.Subtotal.Valid && v.LessThanOrEqual(ac.Subtotal.Decimal) {
			return decimal.Decimal{}, false
		}
		return v, true
	}
	return decimal.Decimal{}, false
}

func subtotalPlusTax(ac *AmountContext) (decimal.Decimal, bool) {
	calc := ac.CalculatedTotal()
	if !calc.Valid {
		return decimal.Decimal{}, false
	}
	sub := ac.Subtotal.Decimal
	if calc.Decimal.GreaterThan(sub) && calc.Decimal.LessThanOrEqual(sub.Mul(maxTaxRatio)) {
		return calc.Decimal, true
	}
	return decimal.Decimal{}, false
}

func largestAsteriskAmount(ac *AmountContext) (decimal.Decimal, bool) {
	var all, aboveSub []decimal.Decimal
	for _, l := range ac.Lines {
		for _, m := range asteriskRE.FindAllStringSubmatch(l, -1) {
			v, err := parseMoney(m[1])
			if err != nil || !v.IsPositive() {
				continue
			}
			all = append(all, v)
			if ac.Subtotal.Valid && v.GreaterThan(ac.Subtotal.Decimal) {
				aboveSub = append(aboveSub, v)
			}
		}
	}
	if len(aboveSub) > 0 {
		return decimal.Max(aboveSub[0], aboveSub[1:]...), true
	}
	if len(all) > 0 {
		return decimal.Max(all[0], all[1:]...), true
	}
	return decimal.Decimal{}, false
}

func largestDecimalAmount(ac *AmountContext) (decimal.Decimal, bool) {
	return largestInRange(ac.Lines, decimalRE, decimalFallbackMin, decimalFallbackMax)
}

func largestNumber(ac *AmountContext) (decimal.Decimal, bool) {
	return largestInRange(ac.Lines, moneyRE, numberFallbackMin, numberFallbackMax)
}

func largestInRange(lines []string, re *regexp.Regexp, lo, hi decimal.Decimal) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, l := range lines {
		for _, s := range re.FindAllString(l, -1) {
			v, err := parseMoney(s)
			if err != nil || v.LessThan(lo) || v.GreaterThan(hi) {
				continue
			}
			if !found || v.GreaterThan(best) {
				best, found = v, true
			}
		}
	}
	return best, found
}

// currencyOnLine prefers an asterisk-prefixed amount (receipt printer
// convention), then the last decimal-formatted number on the line.
func currencyOnLine(line string) (decimal.Decimal, bool) {
	if ms := asteriskRE.FindAllStringSubmatch(line, -1); len(ms) > 0 {
		if v, err := parseMoney(ms[len(ms)-1][1]); err == nil {
			return v, true
		}
	}
	if ms := decimalRE.FindAllString(line, -1); len(ms) > 0 {
		if v, err := parseMoney(ms[len(ms)-1]); err == nil {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}

func plainNumberOnLine(line string) (decimal.Decimal, bool) {
	ms := moneyRE.FindAllString(line, -1)
	if len(ms) == 0 {
		return decimal.Decimal{}, false
	}
	v, err := parseMoney(ms[len(ms)-1])
	if err != nil || !v.IsPositive() {
		return decimal.Decimal{}, false
	}
	return v, true
}

func parseMoney(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.Round(2), nil
}

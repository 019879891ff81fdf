package parser

import (
	"regexp"
	"strings"
)

// InvoiceStrategy is one named way of finding an invoice number. Strategies
// are tried in InvoiceStrategies order and the first non-empty result wins.
type InvoiceStrategy struct {
	Name string
	Find func(lines []string) string
}

var InvoiceStrategies = []InvoiceStrategy{
	{Name: "invoice-no-order-label", Find: labelledInvoice(invoiceNoOrderRE)},
	{Name: "invoice-no-label", Find: labelledInvoice(invoiceNoRE)},
	{Name: "shaped-token", Find: shapedInvoiceToken},
	{Name: "loose-shaped-token-near-keyword", Find: looseShapedInvoiceToken},
	{Name: "receipt-order-no-label", Find: labelledInvoice(receiptOrderNoRE)},
	{Name: "inv-prefix", Find: invPrefixToken},
	{Name: "line-proximity", Find: invoiceNearKeyword},
}

var (
	invoiceNoOrderRE = regexp.MustCompile(`(?i)invoice\s*no\.?\s*order\s*[:#.]?\s*([A-Z0-9][A-Z0-9/-]{3,})`)
	invoiceNoRE      = regexp.MustCompile(`(?i)invoice\s*(?:no\.?|number|num\.?|#)\s*[:#.]?\s*([A-Z0-9][A-Z0-9/-]{3,})`)
	receiptOrderNoRE = regexp.MustCompile(`(?i)\b(?:receipt|order|transaction|trans)\s*(?:no\.?|number|#)\s*[:#.]?\s*([A-Z0-9][A-Z0-9/-]{3,})`)
	shapedStrictRE   = regexp.MustCompile(`(?i)\b(\d{4,5})(?:\s*-\s*|\s+)(\d{2,3})(?:\s*-\s*|\s+)(\d{3,4}[A-Z]?)\b`)
	phoneLabelRE     = regexp.MustCompile(`(?i)\b(?:tel|phone|mobile|contact|cp)\b`)
	shapedLooseRE    = regexp.MustCompile(`(?i)\b(\d{4,5})[\s._-]+(\d{2,3})[\s._-]+(\d{3,4}[A-Z]?)\b`)
	invPrefixRE      = regexp.MustCompile(`(?i)\b(INV[-#:]?\s?[A-Z0-9][A-Z0-9-]{2,})`)
	invoiceTokenRE   = regexp.MustCompile(`(?i)\b[A-Z0-9][A-Z0-9/-]{5,}\b`)
	dateTokenRE      = regexp.MustCompile(`^(?:\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{4})$`)
	invoiceKeywordRE = regexp.MustCompile(`(?i)invoice|order`)
)

// ExtractInvoiceNo returns the upper-cased invoice number, or "".
func ExtractInvoiceNo(text string) string {
	lines := splitLines(text)
	for _, s := range InvoiceStrategies {
		if v := s.Find(lines); v != "" {
			return v
		}
	}
	return ""
}

func labelledInvoice(re *regexp.Regexp) func([]string) string {
	return func(lines []string) string {
		for _, m := range re.FindAllStringSubmatch(strings.Join(lines, "\n"), -1) {
			v := strings.Trim(m[1], "-/")
			if countDigits(v) > 0 && len(v) >= 4 {
				return strings.ToUpper(v)
			}
		}
		return ""
	}
}

func joinShaped(m []string) string {
	return strings.ToUpper(m[1] + "-" + m[2] + "-" + m[3])
}

// shapedInvoiceToken accepts hyphens or whitespace between the groups;
// phone lines share the shape and are skipped.
func shapedInvoiceToken(lines []string) string {
	for _, l := range lines {
		if phoneLabelRE.MatchString(l) {
			continue
		}
		if m := shapedStrictRE.FindStringSubmatch(l); m != nil {
			return joinShaped(m)
		}
	}
	return ""
}

// looseShapedInvoiceToken accepts spaces or dots between the groups but only
// on a line that mentions invoice/order or directly follows one.
func looseShapedInvoiceToken(lines []string) string {
	for i, l := range lines {
		near := invoiceKeywordRE.MatchString(l) || (i > 0 && invoiceKeywordRE.MatchString(lines[i-1]))
		if !near {
			continue
		}
		if m := shapedLooseRE.FindStringSubmatch(l); m != nil {
			return joinShaped(m)
		}
	}
	return ""
}

func invPrefixToken(lines []string) string {
	for _, l := range lines {
		for _, m := range invPrefixRE.FindAllStringSubmatch(l, -1) {
			v := strings.NewReplacer(" ", "", ":", "").Replace(m[1])
			if countDigits(v) > 0 {
				return strings.ToUpper(v)
			}
		}
	}
	return ""
}

// invoiceNearKeyword scans the keyword line and the two lines after it for a
// token carrying at least four digits that is not a date.
func invoiceNearKeyword(lines []string) string {
	for i, l := range lines {
		if !invoiceKeywordRE.MatchString(l) {
			continue
		}
		for j := i; j < len(lines) && j <= i+2; j++ {
			for _, tok := range invoiceTokenRE.FindAllString(lines[j], -1) {
				if countDigits(tok) < 4 || dateTokenRE.MatchString(tok) {
					continue
				}
				return strings.ToUpper(tok)
			}
		}
	}
	return ""
}

package ocr

import (
	"regexp"
	"strings"
)

const (
	// shorter text with no keyword and no long number is not a receipt
	minReceiptTextLength = 50
	// below this the text is considered unreadable unless a key field survives
	MinReadableTextLength = 15
)

var (
	receiptKeywordRE = regexp.MustCompile(`(?i)\b(?:TOTAL|SUBTOTAL|AMOUNT|CASH|CHANGE|TIN|VAT|INVOICE|RECEIPT|OR\s*(?:NO|#)|SALES|QTY|TAX|PHP|PESO)\b`)
	longDigitRunRE   = regexp.MustCompile(`\d{4,}`)
)

// LooksLikeReceipt reports whether the text could come from a receipt. Only
// text failing all three signals (keyword, 4+ digit run, length) is refused.
func LooksLikeReceipt(text string) bool {
	t := strings.TrimSpace(text)
	return receiptKeywordRE.MatchString(t) || longDigitRunRE.MatchString(t) || len(t) >= minReceiptTextLength
}

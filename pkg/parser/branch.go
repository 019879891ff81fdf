package parser

import (
	"regexp"
	"strings"
)

// DefaultBranchLines is how many header lines are searched for the branch.
const DefaultBranchLines = 10

var (
	branchKeywordRE = regexp.MustCompile(`(?i)\b(?:branch|brgy|barangay|city|street|avenue|ave|road|blvd|boulevard|mall|plaza|center|centre|district|village|highway|hwy)\b|\b(?:st|rd)\.`)
	branchLabelRE   = regexp.MustCompile(`(?i)^branch\s*[:#-]?\s*`)
	headerLabelRE   = regexp.MustCompile(`(?i)\b(?:tin|vat|invoice|date|time|total|subtotal|tax|cashier|receipt|order|tel|phone|mobile|pos|terminal|sn|min|ptu|permit|qty)\b`)
	letterWordRE    = regexp.MustCompile(`[A-Za-z]{3,}`)
	anyDigitRE      = regexp.MustCompile(`\d`)
)

// ExtractBranchText looks for a branch/city keyword line, then an
// address-shaped line, within the first maxLines lines. It falls back to the
// second line of the receipt.
func ExtractBranchText(text string, maxLines int) string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return ""
	}
	head := lines
	if maxLines > 0 && len(head) > maxLines {
		head = head[:maxLines]
	}
	for _, l := range head {
		if headerLabelRE.MatchString(l) || !branchKeywordRE.MatchString(l) {
			continue
		}
		if rest := strings.TrimSpace(branchLabelRE.ReplaceAllString(l, "")); rest != "" {
			return rest
		}
	}
	for _, l := range head {
		if headerLabelRE.MatchString(l) {
			continue
		}
		if anyDigitRE.MatchString(l) && letterWordRE.MatchString(l) {
			return l
		}
	}
	if len(lines) > 1 {
		return lines[1]
	}
	return ""
}

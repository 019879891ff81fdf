package parser

import "regexp"

var (
	ean13RE       = regexp.MustCompile(`\b\d{13}\b`)
	alnumRunRE    = regexp.MustCompile(`(?i)\b[A-Z0-9]{8,20}\b`)
	barcodeSkipRE = regexp.MustCompile(`(?i)\b(?:tin|vat|tel|phone|mobile|contact|date|time|invoice|sn|min|ptu|permit|acc)\b`)
)

// ExtractBarcodeData returns an EAN-13 run, else an 8-20 character
// alphanumeric run, mostly digits, that is not mostly leading zeros. Lines carrying TIN,
// phone, date or invoice labels are ignored.
func ExtractBarcodeData(text string) string {
	lines := splitLines(text)
	for _, l := range lines {
		if barcodeSkipRE.MatchString(l) {
			continue
		}
		if m := ean13RE.FindString(l); m != "" {
			return m
		}
	}
	for _, l := range lines {
		if barcodeSkipRE.MatchString(l) {
			continue
		}
		for _, m := range alnumRunRE.FindAllString(l, -1) {
			if countDigits(m)*2 < len(m) || mostlyLeadingZeros(m) {
				continue
			}
			return m
		}
	}
	return ""
}

func mostlyLeadingZeros(s string) bool {
	n := 0
	for n < len(s) && s[n] == '0' {
		n++
	}
	return n*2 > len(s)
}

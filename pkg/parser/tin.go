package parser

import "regexp"

const tinDigits = `([0-9]{3}(?: [0-9]{3}){2,3}(?: [0-9]{2,5})?|[0-9][0-9-]{7,20}[0-9])`

var (
	tinLabelRE   = regexp.MustCompile(`(?i)\bTIN\b\s*(?:NO\.?|NUMBER|#)?\s*[:#.]?\s*` + tinDigits)
	taxIDLabelRE = regexp.MustCompile(`(?i)\bTAX\s*ID\b\s*(?:NO\.?|#)?\s*[:#.]?\s*` + tinDigits)
	vatLabelRE   = regexp.MustCompile(`(?i)\bVAT\b\s*(?:REG(?:\.|ISTRATION)?\s*)?(?:NO\.?|#)?\s*[:#.]?\s*` + tinDigits)
	bareTINRE    = regexp.MustCompile(`\b\d{10,15}\b`)
)

type tinStrategy struct {
	name string
	find func(text string) string
}

var tinStrategies = []tinStrategy{
	{name: "tin-label", find: labelledTIN(tinLabelRE)},
	{name: "tax-id-label", find: labelledTIN(taxIDLabelRE)},
	{name: "vat-label", find: labelledTIN(vatLabelRE)},
	{name: "bare-digit-run", find: bareTIN},
}

// ExtractTIN returns the digit-only TIN printed on the receipt, or "".
func ExtractTIN(text string) string {
	text = NormalizeText(text)
	for _, s := range tinStrategies {
		if tin := s.find(text); tin != "" {
			return tin
		}
	}
	return ""
}

func labelledTIN(re *regexp.Regexp) func(string) string {
	return func(text string) string {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d := digitsOnly(m[1])
			if len(d) >= 9 && len(d) <= 15 {
				return d
			}
		}
		return ""
	}
}

func bareTIN(text string) string {
	for _, loc := range bareTINRE.FindAllStringIndex(text, -1) {
		run := text[loc[0]:loc[1]]
		plus := loc[0] > 0 && text[loc[0]-1] == '+'
		if isMobileNumber(run, plus) {
			continue
		}
		return run
	}
	return ""
}

func isMobileNumber(run string, plusPrefixed bool) bool {
	if plusPrefixed {
		return true
	}
	return len(run) >= 2 && (run[:2] == "09" || (len(run) >= 3 && run[:3] == "639"))
}

package parser

import "strings"

// NormalizeText collapses whitespace inside each line, trims the lines and
// drops empty ones. Line breaks are kept because several extractors look at
// neighbouring lines.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\t", " ")
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func splitLines(text string) []string {
	n := NormalizeText(text)
	if n == "" {
		return nil
	}
	return strings.Split(n, "\n")
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// NormalizeTIN reduces a TIN to its digits so "000-316-968-5" and
// "0003169685" compare equal.
func NormalizeTIN(tin string) string { return digitsOnly(tin) }

package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRE      = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	dayFirstDateRE = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})\b`)
	monthFirstRE   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	dayMonthNameRE = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
	monthsByPrefix = map[string]time.Month{"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6, "jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12}
)

// DateLayout is the canonical receipt date format.
const DateLayout = "2006-01-02"

// ExtractDate returns the receipt date as UTC midnight, or nil.
func ExtractDate(text string) *time.Time {
	text = NormalizeText(text)
	for _, m := range isoDateRE.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return &t
		}
	}
	for _, m := range dayFirstDateRE.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(atoi(m[3]), atoi(m[2]), atoi(m[1])); ok {
			return &t
		}
	}
	for _, m := range monthFirstRE.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(atoi(m[3]), int(monthsByPrefix[strings.ToLower(m[1])]), atoi(m[2])); ok {
			return &t
		}
	}
	for _, m := range dayMonthNameRE.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(atoi(m[3]), int(monthsByPrefix[strings.ToLower(m[2])]), atoi(m[1])); ok {
			return &t
		}
	}
	return nil
}

// FormatDate renders a receipt date as YYYY-MM-DD ("" for nil).
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func makeDate(y, m, d int) (time.Time, bool) {
	if y < 1990 || y > 2100 || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

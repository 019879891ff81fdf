package ocr

import "strings"

// cleanText trims each line, collapses inner runs of spaces and drops blank
// lines. Line structure is kept because field extraction works per line.
func cleanText(t string) string {
	t = strings.ReplaceAll(t, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(t, "\n") {
		line = strings.Join(strings.Fields(strings.ReplaceAll(line, "\t", " ")), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// snippet shortens text for log lines.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

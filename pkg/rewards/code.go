// Package rewards issues, redeems and expires loyalty rewards.
package rewards

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	CodePrefix    = "RW-"
	codeLength    = 10
	payloadPrefix = "REWARD:"
	// DefaultQRSize is the QR image edge in pixels.
	DefaultQRSize = 256
)

// GenerateCode returns a code such as RW-3F9A0C1B2D.
func GenerateCode() string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return CodePrefix + s[:codeLength]
}

// Payload is the text encoded in a reward QR code.
func Payload(code string) string {
	return payloadPrefix + code
}

// CodeFromPayload accepts either a scanned payload or a bare code.
func CodeFromPayload(s string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), payloadPrefix))
}

// QRCodePNG renders the reward payload as a PNG.
func QRCodePNG(code string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(Payload(code), qrcode.Medium, size)
}

// PeriodCount finds the current reward period and counts the approvals in
// it. The first approval opens a period; an approval after the period end
// opens a new one starting at that approval, so older visits stop counting.
// Approvals after now are ignored.
func PeriodCount(approvals []time.Time, period time.Duration, now time.Time) (time.Time, int) {
	if len(approvals) == 0 {
		return time.Time{}, 0
	}
	ts := append([]time.Time(nil), approvals...)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	start := ts[0]
	for _, t := range ts {
		if t.After(now) {
			break
		}
		if t.After(start.Add(period)) {
			start = t
		}
	}
	count := 0
	for _, t := range ts {
		if !t.Before(start) && !t.After(now) {
			count++
		}
	}
	return start, count
}

// ExpiryFor returns when an auto-claimed reward issued at issued expires:
// the shorter of the unclaimed and claimed lifetimes.
func ExpiryFor(issued time.Time, expirationDays, claimedExpirationDays int) time.Time {
	days := expirationDays
	if claimedExpirationDays > 0 && (days <= 0 || claimedExpirationDays < days) {
		days = claimedExpirationDays
	}
	return issued.AddDate(0, 0, days)
}

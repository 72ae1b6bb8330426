// Package meeting constructs meeting links and dial URIs. Session
// establishment is the telephony/video provider's job; this package only
// produces deterministic, reproducible strings.
package meeting

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// dateLayout renders the calendar date as ddmmyyyy.
const dateLayout = "02012006"

// Sanitize collapses every run of non-alphanumeric characters into a single
// dash and trims dashes from both ends, so "C_007" becomes "C-007" and
// "Dr. Alice" becomes "Dr-Alice".
func Sanitize(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// BuildURL returns the deterministic meeting link for a household, user and
// calendar date. Identical inputs always produce the identical link, which
// makes same-day reissuing idempotent.
func BuildURL(provider, namespace, coupleID, userName string, day time.Time) string {
	return fmt.Sprintf("https://meet.%s/%s-%s-%s-%s",
		provider,
		namespace,
		Sanitize(coupleID),
		Sanitize(userName),
		day.Format(dateLayout))
}

// DialURI returns a tel: URI for the given phone number, keeping digits and
// a leading plus.
func DialURI(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return "tel:" + b.String()
}

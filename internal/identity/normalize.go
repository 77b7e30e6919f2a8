// Package identity provides the canonicalization helpers that turn raw
// user-entered contact details into matching keys. The same rules feed both
// the browser-side pixel channel and the server-side conversions relay, so
// the two channels always agree on what they report for one person.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Minimal local@domain.tld shape check. A sanity filter, not RFC validation.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Normalizer applies a single fixed national phone rule. The zero value is
// unusable; construct with NewNormalizer.
type Normalizer struct {
	countryCode string // e.g. "44"
	trunkPrefix string // e.g. "0"
}

// NewNormalizer returns a Normalizer for the given country calling code and
// national trunk prefix.
func NewNormalizer(countryCode, trunkPrefix string) *Normalizer {
	return &Normalizer{countryCode: countryCode, trunkPrefix: trunkPrefix}
}

// NormalizeEmail trims and lowercases raw. Returns false unless the value
// matches a minimal local@domain.tld shape.
func NormalizeEmail(raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" || !emailPattern.MatchString(v) {
		return "", false
	}
	return v, true
}

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone produces the digits-only international matching key: strip
// non-digits, replace a leading trunk prefix with the country code, and
// require 10–15 digits. Not a +-prefixed E.164 string; see E164 for the
// display/submission form derived by the same substitution rule.
func (n *Normalizer) NormalizePhone(raw string) (string, bool) {
	d := Digits(raw)
	if d == "" {
		return "", false
	}
	if strings.HasPrefix(d, n.trunkPrefix) {
		d = n.countryCode + d[len(n.trunkPrefix):]
	}
	if len(d) < 10 || len(d) > 15 {
		return "", false
	}
	return d, true
}

// E164 derives a best-effort +-prefixed international form from raw using
// the same trunk-prefix substitution as NormalizePhone. Inputs already
// starting with "+" pass through as typed.
func (n *Normalizer) E164(raw string) string {
	trimmed := strings.TrimSpace(raw)
	d := Digits(trimmed)
	if d == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}
	if strings.HasPrefix(d, n.countryCode) {
		return "+" + d
	}
	if strings.HasPrefix(d, n.trunkPrefix) {
		return "+" + n.countryCode + d[len(n.trunkPrefix):]
	}
	return "+" + d
}

// HashSHA256 returns the lowercase hex-encoded SHA-256 digest of the UTF-8
// bytes of s. Unsalted: the receiving systems join on bare digests.
func HashSHA256(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

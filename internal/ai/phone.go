package ai

import (
	"regexp"
	"strings"
)

var (
	phoneCharsRe  = regexp.MustCompile(`^[0-9\-]+$`)
	phoneDigitsRe = regexp.MustCompile(`^\d{10,11}$`)
	mobileRe      = regexp.MustCompile(`^0[789]0\d{8}$`)
	ipPhoneRe     = regexp.MustCompile(`^050\d{8}$`)
	landline2Re   = regexp.MustCompile(`^0[36]\d{8}$`)
	landline3Re   = regexp.MustCompile(`^0\d{2}\d{7}$`)
	landline4Re   = regexp.MustCompile(`^0\d{3}\d{6}$`)
	landline5Re   = regexp.MustCompile(`^0\d{4}\d{5}$`)
)

// IsValidJapanesePhoneNumber checks a candidate against Japanese mobile
// (070/080/090), IP phone (050), and landline numbering plans. Hyphens
// are allowed; any other non-digit character fails.
func IsValidJapanesePhoneNumber(phone string) bool {
	if !phoneCharsRe.MatchString(phone) {
		return false
	}

	raw := strings.ReplaceAll(phone, "-", "")
	if !phoneDigitsRe.MatchString(raw) {
		return false
	}

	if mobileRe.MatchString(raw) {
		return true
	}
	if ipPhoneRe.MatchString(raw) {
		return true
	}

	// Landlines are 10 digits. 070/080/090 prefixes at 10 digits are
	// malformed mobiles and 0120 is toll-free, so both are excluded.
	if len(raw) == 10 &&
		!strings.HasPrefix(raw, "070") &&
		!strings.HasPrefix(raw, "080") &&
		!strings.HasPrefix(raw, "090") &&
		!strings.HasPrefix(raw, "0120") {
		if landline2Re.MatchString(raw) {
			return true
		}
		if landline3Re.MatchString(raw) {
			return true
		}
		if landline4Re.MatchString(raw) {
			return true
		}
		if landline5Re.MatchString(raw) {
			return true
		}
	}

	return false
}

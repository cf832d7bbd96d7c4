package oggo

import (
	"strings"

	"aircall-sync/internal/contact"
)

// nationalLength is the length of a French national significant number.
const nationalLength = 9

// PhoneNormalizer returns the OGGO phone format: the national significant
// number, digits only, without international prefix, country code or trunk 0.
//
//	+33612345678   -> 612345678
//	0033612345678  -> 612345678
//	06 12 34 56 78 -> 612345678
func PhoneNormalizer(countryCode string) contact.Normalizer {
	return func(raw string) string {
		digits := onlyDigits(raw)
		digits = strings.TrimPrefix(digits, "00")
		if countryCode != "" && strings.HasPrefix(digits, countryCode) && len(digits)-len(countryCode) >= nationalLength {
			digits = digits[len(countryCode):]
		}
		if strings.HasPrefix(digits, "0") && len(digits) > nationalLength {
			digits = digits[1:]
		}
		return digits
	}
}

func onlyDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

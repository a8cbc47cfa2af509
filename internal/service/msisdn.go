package service

import (
	"regexp"
	"strings"
)

const (
	countryCode = "263"
	trunkPrefix = "0"
)

var (
	nonDigits       = regexp.MustCompile(`\D`)
	canonicalMSISDN = regexp.MustCompile(`^2637\d{8}$`)
)

// NormalizeMSISDN converts user-entered phone numbers into the canonical
// international form 2637XXXXXXXX.
//
//	"0771234567"       -> "263771234567"
//	"+263 77 123 4567" -> "263771234567"
//	"2630771234567"    -> "263771234567"
func NormalizeMSISDN(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(digits, countryCode+trunkPrefix):
		digits = countryCode + strings.TrimPrefix(digits, countryCode+trunkPrefix)
	case strings.HasPrefix(digits, trunkPrefix):
		digits = countryCode + strings.TrimPrefix(digits, trunkPrefix)
	}

	if !canonicalMSISDN.MatchString(digits) {
		return "", ErrInvalidPhoneNumber
	}

	return digits, nil
}

// IsValidMSISDN reports whether raw normalizes to a canonical MSISDN.
func IsValidMSISDN(raw string) bool {
	_, err := NormalizeMSISDN(raw)
	return err == nil
}

package utils

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone returns phone in E.164 form ("+" and 8 to 15 digits).
// Numbers without an international prefix ("+" or "00") get
// countryCode after leading zeros are dropped.
func NormalizePhone(phone, countryCode string) (string, error) {
	phone = strings.TrimSpace(phone)
	international := strings.HasPrefix(phone, "+")
	digits := nonDigits.ReplaceAllString(phone, "")

	switch {
	case international:
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	default:
		digits = strings.TrimLeft(digits, "0")
		cc := nonDigits.ReplaceAllString(countryCode, "")
		if digits != "" && !(len(digits) > 10 && strings.HasPrefix(digits, cc)) {
			digits = cc + digits
		}
	}

	if len(digits) < 8 || len(digits) > 15 || digits[0] == '0' {
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}

// MaskPhone hides all but the last four digits, for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

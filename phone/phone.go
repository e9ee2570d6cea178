// Package phone normalizes phone numbers to the E.164 format the identity
// provider requires: +[country code][number], digits only.
package phone

import (
	"regexp"
	"strings"
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// FormatE164 normalizes free-form user input to E.164, assuming
// defaultCountryCode (e.g. "1") for bare ten-digit national numbers. It
// returns "" when the input cannot plausibly be a phone number.
func FormatE164(input, defaultCountryCode string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	hasPlus := strings.HasPrefix(trimmed, "+")
	digits := digitsOnly(trimmed)
	if digits == "" {
		return ""
	}

	if hasPlus {
		return "+" + digits
	}
	// US/Canada national number without a country code.
	if len(digits) == 10 {
		return "+" + defaultCountryCode + digits
	}
	if len(digits) >= 11 {
		return "+" + digits
	}
	return ""
}

// IsValidE164 reports whether phone is a well-formed E.164 number.
func IsValidE164(phone string) bool {
	return e164Pattern.MatchString(phone)
}

// FormatForDisplay renders an E.164 number with spacing for US/Canada
// numbers; other numbers pass through unchanged.
func FormatForDisplay(phone string) string {
	if phone == "" {
		return ""
	}
	digits := digitsOnly(phone)
	if strings.HasPrefix(phone, "+1") && len(digits) == 11 {
		return "+1 " + digits[1:4] + " " + digits[4:7] + " " + digits[7:]
	}
	return phone
}

// CountryCode extracts the country code from an E.164 number, or "" when the
// number has no leading "+".
func CountryCode(phone string) string {
	if !strings.HasPrefix(phone, "+") {
		return ""
	}
	digits := phone[1:]
	switch {
	case strings.HasPrefix(digits, "1"):
		return "1"
	case strings.HasPrefix(digits, "44"):
		return "44"
	}
	for i := 0; i < len(digits) && i < 3; i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return digits[:i]
		}
	}
	if len(digits) > 3 {
		return digits[:3]
	}
	return digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package verification

import (
	"fmt"
	"strings"
)

const DefaultCountryCode = "234"

// NormalizePhone converts user input to +<country><number>.
//
// A leading + keeps the digits as given. A national trunk 0 or a bare
// ten digit number gets countryCode. Anything else is assumed to already
// carry a country code.
func NormalizePhone(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", fmt.Errorf("%w: phone number must contain digits", ErrInvalidInput)
	}

	var normalized string
	switch {
	case strings.HasPrefix(raw, "+"):
		normalized = digits
	case strings.HasPrefix(digits, "0"):
		normalized = countryCode + digits[1:]
	case len(digits) == 10:
		normalized = countryCode + digits
	default:
		normalized = digits
	}

	// E.164 allows at most 15 digits.
	if len(normalized) < 8 || len(normalized) > 15 {
		return "", fmt.Errorf("%w: phone number has an invalid length", ErrInvalidInput)
	}
	return "+" + normalized, nil
}

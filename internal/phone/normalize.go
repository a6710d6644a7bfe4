// Package phone normalizes US phone numbers for lead intake.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// ErrInvalid is returned when input cannot resolve to ten significant digits.
var ErrInvalid = errors.New("phone: invalid US number")

// Normalize reduces input to the 11-digit form with a leading US country
// code, e.g. "(941) 555-1234" -> "19415551234".
func Normalize(input string) (string, error) {
	digits := Digits(input)
	switch {
	case len(digits) == 10:
		return "1" + digits, nil
	case len(digits) == 11 && digits[0] == '1':
		return digits, nil
	default:
		return "", ErrInvalid
	}
}

// IsNormalized reports whether s is already in the 11-digit form.
func IsNormalized(s string) bool {
	if len(s) != 11 || s[0] != '1' {
		return false
	}
	return Digits(s) == s
}

// Display formats a number for humans, e.g. "(941) 555-1234". Input that
// cannot be parsed is returned trimmed.
func Display(input string) string {
	trimmed := strings.TrimSpace(input)
	normalized, err := Normalize(trimmed)
	if err != nil {
		return trimmed
	}

	number, err := phonenumbers.Parse("+"+normalized, defaultRegion)
	if err == nil {
		if formatted := phonenumbers.Format(number, phonenumbers.NATIONAL); strings.HasPrefix(formatted, "(") {
			return formatted
		}
	}
	// Area codes starting with 0 or 1 are not NANP numbers, so phonenumbers
	// leaves them unformatted.
	national := normalized[1:]
	return fmt.Sprintf("(%s) %s-%s", national[:3], national[3:6], national[6:])
}

// Digits strips everything but ASCII digits.
func Digits(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrCityEmpty is returned when city is empty or whitespace-only.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooLong is returned when city length exceeds the maximum.
var ErrCityTooLong = errors.New("city too long")

// ValidateCity rejects blank input and input longer than maxLen runes
// (maxLen <= 0 disables the bound). The city is returned unmodified: cache
// keys are built from the raw name, so no trimming or case folding happens here.
func ValidateCity(input string, maxLen int) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrCityEmpty
	}
	if maxLen > 0 && utf8.RuneCountInString(input) > maxLen {
		return "", ErrCityTooLong
	}
	return input, nil
}

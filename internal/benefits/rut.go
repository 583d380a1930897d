package benefits

import (
	"errors"
	"strings"
)

// ErrInvalidRUT indicates a malformed or checksum-failing RUT.
var ErrInvalidRUT = errors.New("invalid rut")

// NormalizeRUT strips dots and hyphens and upper-cases the check digit, so
// "12.345.678-5" and "123456785" compare equal.
func NormalizeRUT(rut string) string {
	rut = strings.ToUpper(strings.TrimSpace(rut))
	rut = strings.ReplaceAll(rut, ".", "")
	rut = strings.ReplaceAll(rut, "-", "")
	return rut
}

// ValidateRUT checks format and the modulo-11 check digit.
func ValidateRUT(rut string) error {
	normalized := NormalizeRUT(rut)
	if len(normalized) < 2 || len(normalized) > 9 {
		return ErrInvalidRUT
	}
	body := normalized[:len(normalized)-1]
	check := normalized[len(normalized)-1]

	sum := 0
	factor := 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return ErrInvalidRUT
		}
		sum += int(c-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}

	var expected byte
	switch rest := 11 - (sum % 11); rest {
	case 11:
		expected = '0'
	case 10:
		expected = 'K'
	default:
		expected = byte('0' + rest)
	}
	if check != expected {
		return ErrInvalidRUT
	}
	return nil
}

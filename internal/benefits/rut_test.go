package benefits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRUT(t *testing.T) {
	assert.Equal(t, "123456785", NormalizeRUT("12.345.678-5"))
	assert.Equal(t, "123456785", NormalizeRUT(" 12345678-5 "))
	assert.Equal(t, "5000001K", NormalizeRUT("5000001-k"))
}

func TestValidateRUT(t *testing.T) {
	valid := []string{
		"12345678-5",
		"12.345.678-5",
		"11111111-1",
		"5000001-K",
		"5000001-k",
	}
	for _, rut := range valid {
		assert.NoError(t, ValidateRUT(rut), rut)
	}

	invalid := []string{
		"",
		"5",
		"12345678-9",   // wrong check digit
		"12345678-K",   // wrong check digit
		"1234567890-1", // too long
		"abcdefgh-5",
		"12.345.678",
	}
	for _, rut := range invalid {
		assert.ErrorIs(t, ValidateRUT(rut), ErrInvalidRUT, rut)
	}
}

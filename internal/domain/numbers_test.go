package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	for raw, want := range map[string]string{
		"40":         "40",
		" 7.5 ":      "7.5",
		"1,234.5":    "1234.5",
		"12,345,678": "12345678",
	} {
		got, err := ParseDecimal(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got.String(), raw)
	}
}

func TestParseDecimalRejectsDecimalComma(t *testing.T) {
	for _, raw := range []string{"7,5", "1,23", "1234,567", ",500", "1,,000", "abc"} {
		_, err := ParseDecimal(raw)
		assert.Error(t, err, raw)
	}
}

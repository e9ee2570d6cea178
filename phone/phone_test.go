package phone_test

import (
	"testing"

	"github.com/jrsteele09/go-passwordless/phone"
	"github.com/stretchr/testify/require"
)

func TestFormatE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare US number", "5551234567", "+15551234567"},
		{"formatted US number", "(555) 123-4567", "+15551234567"},
		{"plus with spaces", "+1 555 123 4567", "+15551234567"},
		{"international", "+44 20 1234 5678", "+442012345678"},
		{"eleven digits without plus", "15551234567", "+15551234567"},
		{"too short", "12345", ""},
		{"empty", "", ""},
		{"no digits", "call me", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, phone.FormatE164(tc.input, "1"))
		})
	}
}

func TestFormatE164DefaultCountryCode(t *testing.T) {
	require.Equal(t, "+445551234567", phone.FormatE164("5551234567", "44"))
}

func TestIsValidE164(t *testing.T) {
	require.True(t, phone.IsValidE164("+15551234567"))
	require.True(t, phone.IsValidE164("+442012345678"))
	require.False(t, phone.IsValidE164("15551234567"))
	require.False(t, phone.IsValidE164("+0155512345"))
	require.False(t, phone.IsValidE164(""))
	require.False(t, phone.IsValidE164("+1 555 123 4567"))
}

func TestFormatForDisplay(t *testing.T) {
	require.Equal(t, "+1 555 123 4567", phone.FormatForDisplay("+15551234567"))
	require.Equal(t, "+442012345678", phone.FormatForDisplay("+442012345678"))
	require.Equal(t, "", phone.FormatForDisplay(""))
}

func TestCountryCode(t *testing.T) {
	require.Equal(t, "1", phone.CountryCode("+15551234567"))
	require.Equal(t, "44", phone.CountryCode("+442012345678"))
	require.Equal(t, "", phone.CountryCode("5551234567"))
}

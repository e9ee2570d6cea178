package location_test

import (
	"testing"

	"github.com/jrsteele09/go-passwordless/location"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"country only", "canada", "canada"},
		{"country and state", "usa/wa", "usa/wa"},
		{"space separated", "usa wa", "usa/wa"},
		{"mixed case with spaces", "  USA / WA ", "usa/wa"},
		{"three parts", "usa/wa/seattle", ""},
		{"empty", "", ""},
		{"fullwidth input", "ＵＳＡ/ＷＡ", "usa/wa"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, location.Validate(tc.input))
		})
	}
}

func TestNormalizeCountry(t *testing.T) {
	require.Equal(t, "usa", location.NormalizeCountry("US"))
	require.Equal(t, "uk", location.NormalizeCountry("gb"))
	require.Equal(t, "france", location.NormalizeCountry("France"))
	require.Equal(t, "", location.NormalizeCountry(""))
}

func TestNormalizeState(t *testing.T) {
	require.Equal(t, "wa", location.NormalizeState("Washington"))
	require.Equal(t, "bc", location.NormalizeState("British Columbia"))
	require.Equal(t, "tx", location.NormalizeState("tx"))
	require.Equal(t, "bavaria", location.NormalizeState("Bavaria"))
}

func TestDisplayRoundTrip(t *testing.T) {
	require.Equal(t, "USA / WA", location.FormatForDisplay("usa/wa"))
	require.Equal(t, "CANADA", location.FormatForDisplay("canada"))
	require.Equal(t, "usa/wa", location.ParseFromDisplay("USA / WA"))
	require.Equal(t, "usa/wa", location.ParseFromDisplay(location.FormatForDisplay("usa/wa")))
}

// Package location validates and normalizes the free-form "country/state"
// strings stored as a profile attribute. Storage format is lowercase
// "country" or "country/state" (e.g. "usa/wa", "canada/bc").
package location

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// countryAliases maps ISO-style codes to the stored country names.
var countryAliases = map[string]string{
	"us": "usa",
	"ca": "canada",
	"gb": "uk",
	"au": "australia",
	"nz": "newzealand",
}

var usStates = map[string]string{
	"alabama": "al", "alaska": "ak", "arizona": "az", "arkansas": "ar",
	"california": "ca", "colorado": "co", "connecticut": "ct", "delaware": "de",
	"florida": "fl", "georgia": "ga", "hawaii": "hi", "idaho": "id",
	"illinois": "il", "indiana": "in", "iowa": "ia", "kansas": "ks",
	"kentucky": "ky", "louisiana": "la", "maine": "me", "maryland": "md",
	"massachusetts": "ma", "michigan": "mi", "minnesota": "mn",
	"mississippi": "ms", "missouri": "mo", "montana": "mt", "nebraska": "ne",
	"nevada": "nv", "new hampshire": "nh", "new jersey": "nj",
	"new mexico": "nm", "new york": "ny", "north carolina": "nc",
	"north dakota": "nd", "ohio": "oh", "oklahoma": "ok", "oregon": "or",
	"pennsylvania": "pa", "rhode island": "ri", "south carolina": "sc",
	"south dakota": "sd", "tennessee": "tn", "texas": "tx", "utah": "ut",
	"vermont": "vt", "virginia": "va", "washington": "wa",
	"west virginia": "wv", "wisconsin": "wi", "wyoming": "wy",
}

var canadianProvinces = map[string]string{
	"british columbia": "bc", "alberta": "ab", "saskatchewan": "sk",
	"manitoba": "mb", "ontario": "on", "quebec": "qc", "new brunswick": "nb",
	"nova scotia": "ns", "prince edward island": "pe", "newfoundland": "nl",
	"yukon": "yt", "northwest territories": "nt", "nunavut": "nu",
}

var (
	separatorPattern = regexp.MustCompile(`[/\s]+`)
	displaySlash     = regexp.MustCompile(`\s*/\s*`)
)

// NormalizeCountry lowercases a country code or name and resolves known
// aliases ("us" becomes "usa").
func NormalizeCountry(country string) string {
	code := fold(country)
	if code == "" {
		return ""
	}
	if mapped, ok := countryAliases[code]; ok {
		return mapped
	}
	return code
}

// NormalizeState lowercases a state or province and converts known full names
// to their two-letter abbreviations. Two-letter inputs pass through.
func NormalizeState(state string) string {
	normalized := fold(state)
	if normalized == "" || len(normalized) == 2 {
		return normalized
	}
	if abbr, ok := usStates[normalized]; ok {
		return abbr
	}
	if abbr, ok := canadianProvinces[normalized]; ok {
		return abbr
	}
	return normalized
}

// Validate normalizes a user-entered location to storage format. It returns
// "" when the input has no content or more than two parts.
func Validate(location string) string {
	trimmed := fold(location)
	if trimmed == "" {
		return ""
	}
	parts := separatorPattern.Split(trimmed, -1)
	filtered := parts[:0]
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	switch len(filtered) {
	case 1:
		return filtered[0]
	case 2:
		return filtered[0] + "/" + filtered[1]
	}
	return ""
}

// FormatForDisplay renders a stored location for the profile form:
// "usa/wa" becomes "USA / WA".
func FormatForDisplay(location string) string {
	if location == "" {
		return ""
	}
	parts := strings.Split(location, "/")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p)
	}
	return strings.Join(parts, " / ")
}

// ParseFromDisplay converts the display format back to storage format:
// "USA / WA" becomes "usa/wa".
func ParseFromDisplay(display string) string {
	if display == "" {
		return ""
	}
	lowered := strings.ToLower(display)
	lowered = displaySlash.ReplaceAllString(lowered, "/")
	return strings.ReplaceAll(lowered, " ", "")
}

// fold applies Unicode compatibility normalization before lowercasing, so
// composed and full-width input compares like plain ASCII.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

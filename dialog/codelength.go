package dialog

import (
	"sort"
	"strconv"

	"github.com/jrsteele09/go-passwordless/passwordless"
)

const (
	minOTPLength     = 4
	maxOTPLength     = 8
	DefaultOTPLength = 8
)

// staticAllowedCodeLengths is always accepted regardless of provider hints,
// since challenge metadata is not guaranteed to express code length
// consistently across pool configurations.
var staticAllowedCodeLengths = []int{4, 6, 8}

// codeLengthHintKeys are the challenge-parameter keys that may carry the
// expected code length, in precedence order.
var codeLengthHintKeys = []string{"CODE_LENGTH", "OTP_LENGTH", "OTPCodeLength", "otpLength"}

// clampOTPLength snaps a hinted length into [minOTPLength, maxOTPLength].
// Non-positive values are rejected.
func clampOTPLength(value int) (int, bool) {
	if value <= 0 {
		return 0, false
	}
	if value < minOTPLength {
		return minOTPLength, true
	}
	if value > maxOTPLength {
		return maxOTPLength, true
	}
	return value, true
}

// ExpectedCodeLength resolves the code length for a session from the
// provider's challenge metadata, first non-empty hint wins, else fallback.
func ExpectedCodeLength(session *passwordless.AuthSession, fallback int) int {
	if session != nil {
		for _, key := range codeLengthHintKeys {
			raw, ok := session.ChallengeParameters[key]
			if !ok || raw == "" {
				continue
			}
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			if clamped, ok := clampOTPLength(parsed); ok {
				return clamped
			}
		}
	}
	if clamped, ok := clampOTPLength(fallback); ok {
		return clamped
	}
	return DefaultOTPLength
}

// AllowedCodeLengths unions the expected length, the configured fallback and
// the static allow-list, sorted ascending.
func AllowedCodeLengths(expected, fallback int) []int {
	set := make(map[int]bool)
	candidates := append([]int{expected, fallback}, staticAllowedCodeLengths...)
	for _, candidate := range candidates {
		if clamped, ok := clampOTPLength(candidate); ok {
			set[clamped] = true
		}
	}
	lengths := make([]int, 0, len(set))
	for length := range set {
		lengths = append(lengths, length)
	}
	sort.Ints(lengths)
	return lengths
}

// CodeLengthAllowed reports whether a typed code's length exactly matches one
// of the session's allowed lengths. A code that fails this check is a local
// validation failure and must not be sent to the provider.
func CodeLengthAllowed(code string, session *passwordless.AuthSession, fallback int) bool {
	expected := ExpectedCodeLength(session, fallback)
	for _, length := range AllowedCodeLengths(expected, fallback) {
		if len(code) == length {
			return true
		}
	}
	return false
}

package dialog_test

import (
	"testing"

	"github.com/jrsteele09/go-passwordless/dialog"
	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/stretchr/testify/require"
)

func sessionWithParams(params map[string]string) *passwordless.AuthSession {
	return &passwordless.AuthSession{
		Session:             "sess-1",
		ChallengeName:       passwordless.ChallengeEmailOTP,
		ChallengeParameters: params,
	}
}

func TestExpectedCodeLengthFromHints(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   int
	}{
		{"CODE_LENGTH", map[string]string{"CODE_LENGTH": "6"}, 6},
		{"OTP_LENGTH", map[string]string{"OTP_LENGTH": "4"}, 4},
		{"OTPCodeLength", map[string]string{"OTPCodeLength": "6"}, 6},
		{"otpLength", map[string]string{"otpLength": "8"}, 8},
		{"first non-empty wins", map[string]string{"CODE_LENGTH": "4", "OTP_LENGTH": "6"}, 4},
		{"clamped low", map[string]string{"CODE_LENGTH": "2"}, 4},
		{"clamped high", map[string]string{"CODE_LENGTH": "12"}, 8},
		{"unparseable falls through", map[string]string{"CODE_LENGTH": "six"}, 8},
		{"no hints", nil, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, dialog.ExpectedCodeLength(sessionWithParams(tc.params), 8))
		})
	}
}

func TestExpectedCodeLengthNilSessionUsesFallback(t *testing.T) {
	require.Equal(t, 6, dialog.ExpectedCodeLength(nil, 6))
	require.Equal(t, dialog.DefaultOTPLength, dialog.ExpectedCodeLength(nil, 0))
}

func TestAllowedCodeLengthsUnion(t *testing.T) {
	require.Equal(t, []int{4, 6, 8}, dialog.AllowedCodeLengths(6, 8))
	require.Equal(t, []int{4, 5, 6, 8}, dialog.AllowedCodeLengths(5, 8))
}

func TestCodeSubmittable(t *testing.T) {
	state := dialog.State{AllowedCodeLengths: []int{4, 6, 8}}

	state.Code = "1234"
	require.True(t, state.CodeSubmittable())
	state.Code = "123456"
	require.True(t, state.CodeSubmittable())
	state.Code = "12345678"
	require.True(t, state.CodeSubmittable())
	state.Code = "12345"
	require.False(t, state.CodeSubmittable())
	state.Code = "1234567"
	require.False(t, state.CodeSubmittable())
	state.Code = ""
	require.False(t, state.CodeSubmittable())
}

func TestResolveMethods(t *testing.T) {
	require.Equal(t,
		[]passwordless.Method{passwordless.MethodEmailOTP, passwordless.MethodSMSOTP},
		dialog.ResolveMethods(""))
	require.Equal(t,
		[]passwordless.Method{passwordless.MethodSMSOTP, passwordless.MethodEmailOTP},
		dialog.ResolveMethods("sms, email"))
	require.Equal(t,
		[]passwordless.Method{passwordless.MethodEmailOTP, passwordless.MethodSMSOTP},
		dialog.ResolveMethods("carrier-pigeon"))
}

func TestNormalizeMethod(t *testing.T) {
	order := dialog.ResolveMethods("email sms")

	require.Equal(t, passwordless.MethodSMSOTP, dialog.NormalizeMethod("SMS_OTP", order))
	require.Equal(t, passwordless.MethodSMSOTP, dialog.NormalizeMethod("sms", order))
	require.Equal(t, passwordless.MethodEmailOTP, dialog.NormalizeMethod("bogus", order))
	require.Equal(t, passwordless.MethodEmailOTP, dialog.NormalizeMethod("", order))
}

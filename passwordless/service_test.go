package passwordless_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/jrsteele09/go-passwordless/passwordless/providerfakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testEmail = "john.doe@example.com"
	testPhone = "+15551234567"
)

func newTestService(t *testing.T) (*passwordless.Service, *providerfakes.FakeProvider) {
	t.Helper()

	provider := providerfakes.NewFakeProvider()
	provider.PhantomChallengeForUnknownUsers = true

	service, err := passwordless.NewService(provider)
	require.NoError(t, err)
	return service, provider
}

// signIn drives a seeded confirmed user through the full login handshake up
// to the point where a code is expected.
func signIn(t *testing.T, service *passwordless.Service, opts passwordless.StartOptions) *passwordless.AuthSession {
	t.Helper()

	session, err := service.StartAuth(context.Background(), testEmail, opts)
	require.NoError(t, err)
	require.True(t, session.ChallengeName.IsOTP())
	return session
}

func TestStartAuthCreatesNewUser(t *testing.T) {
	service, provider := newTestService(t)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{PhoneNumber: testPhone})
	require.NoError(t, err)

	require.Equal(t, passwordless.ChallengeConfirmSignUp, session.ChallengeName)
	require.Equal(t, passwordless.PendingConfirmationSession, session.Session)
	require.True(t, session.IsNewUser)
	require.Equal(t, testEmail, session.Username)
	require.Equal(t, testPhone, session.PhoneNumber)
	require.Equal(t, 1, provider.SignUpCalls)
	require.Zero(t, provider.InitiateCalls, "creation-first must not probe with an authenticate call")
	require.NotEmpty(t, provider.ConfirmationCode(testEmail))

	attrs := provider.UserAttributes(testEmail)
	require.Equal(t, testEmail, attrs["email"])
	require.Equal(t, testPhone, attrs["phone_number"])
	require.Equal(t, "UTC", attrs["zoneinfo"])
}

func TestStartAuthResendsWhenSignUpSendsNoCode(t *testing.T) {
	service, provider := newTestService(t)
	provider.SignUpCodeDelivered = false

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.NoError(t, err)

	require.Equal(t, passwordless.ChallengeConfirmSignUp, session.ChallengeName)
	require.Equal(t, 1, provider.ResendCalls)
	require.NotEmpty(t, provider.ConfirmationCode(testEmail))
}

func TestStartAuthNormalizesEmail(t *testing.T) {
	service, _ := newTestService(t)

	session, err := service.StartAuth(context.Background(), "  John.Doe@Example.COM ", passwordless.StartOptions{})
	require.NoError(t, err)
	require.Equal(t, testEmail, session.Username)
}

func TestStartAuthRejectsEmptyEmail(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.StartAuth(context.Background(), "   ", passwordless.StartOptions{})
	require.Error(t, err)
}

func TestStartAuthExistingUserAnswersSelectChallenge(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.NoError(t, err)

	require.Equal(t, passwordless.ChallengeEmailOTP, session.ChallengeName)
	require.NotEmpty(t, session.Session)
	require.False(t, session.IsNewUser)
	require.Equal(t, "EMAIL_OTP", provider.LastResponses["ANSWER"])
}

func TestStartAuthHonorsPreferredSMSChallenge(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{
		PreferredChallenge: passwordless.MethodSMSOTP,
	})
	require.NoError(t, err)

	require.Equal(t, passwordless.ChallengeSMSOTP, session.ChallengeName)
	require.Equal(t, "SMS_OTP", provider.LastResponses["ANSWER"])
}

func TestStartAuthUnconfirmedUserResendsConfirmation(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, false)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.NoError(t, err)

	require.Equal(t, passwordless.ChallengeConfirmSignUp, session.ChallengeName)
	require.False(t, session.IsNewUser)
	require.Equal(t, 1, provider.ResendCalls)
}

func TestStartAuthFlagsUnreachableUserNotFound(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)
	provider.FailNext["InitiateAuth"] = &passwordless.ProviderError{Name: passwordless.ErrNameUserNotFound}

	_, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.ErrorIs(t, err, passwordless.ErrUserNotFoundUnreachable)
}

func TestConfirmAuthNewUserGetsProfileStep(t *testing.T) {
	service, provider := newTestService(t)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.NoError(t, err)

	result, err := service.ConfirmAuth(context.Background(), session, provider.ConfirmationCode(testEmail))
	require.NoError(t, err)

	require.True(t, result.NeedsProfileCompletion)
	require.Nil(t, result.Tokens)
	require.NotNil(t, result.NextSession)
	require.Equal(t, passwordless.ChallengeProfileCompletion, result.NextSession.ChallengeName)
	require.True(t, result.NextSession.ChallengeName.IsClientOnly())
}

func TestConfirmAuthExistingUserRestartsLogin(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, false)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.NoError(t, err)
	require.Equal(t, passwordless.ChallengeConfirmSignUp, session.ChallengeName)

	result, err := service.ConfirmAuth(context.Background(), session, provider.ConfirmationCode(testEmail))
	require.NoError(t, err)

	require.False(t, result.NeedsProfileCompletion)
	require.NotNil(t, result.NextSession)
	require.True(t, result.NextSession.ChallengeName.IsOTP())
}

func TestConfirmAuthOTPReturnsTokens(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session := signIn(t, service, passwordless.StartOptions{})
	code := provider.CurrentCode(session.Session)
	require.NotEmpty(t, code)

	result, err := service.ConfirmAuth(context.Background(), session, code)
	require.NoError(t, err)

	require.NotNil(t, result.Tokens)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.IDToken)
	require.Equal(t, "Bearer", result.Tokens.TokenType)

	// The code must travel under both the channel-specific and the generic
	// keys.
	require.Equal(t, code, provider.LastResponses["EMAIL_OTP_CODE"])
	require.Equal(t, code, provider.LastResponses["ANSWER"])
}

func TestConfirmAuthTrimsCode(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session := signIn(t, service, passwordless.StartOptions{})
	code := provider.CurrentCode(session.Session)

	result, err := service.ConfirmAuth(context.Background(), session, "  "+code+" ")
	require.NoError(t, err)
	require.NotNil(t, result.Tokens)
}

func TestConfirmAuthNoTokensIsHardError(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)
	provider.OmitTokens = true

	session := signIn(t, service, passwordless.StartOptions{})

	_, err := service.ConfirmAuth(context.Background(), session, provider.CurrentCode(session.Session))
	require.ErrorIs(t, err, passwordless.ErrNoTokens)
}

func TestConfirmAuthWrongCode(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session := signIn(t, service, passwordless.StartOptions{})

	_, err := service.ConfirmAuth(context.Background(), session, "000000")
	require.Error(t, err)
	require.True(t, passwordless.IsProviderError(err, passwordless.ErrNameCodeMismatch))
}

func TestConfirmAuthInvalidSession(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.ConfirmAuth(context.Background(), &passwordless.AuthSession{}, "123456")
	require.ErrorIs(t, err, passwordless.ErrInvalidSession)
}

func TestResendCodeConfirmSignUpKeepsSession(t *testing.T) {
	service, provider := newTestService(t)

	session, err := service.StartAuth(context.Background(), testEmail, passwordless.StartOptions{})
	require.NoError(t, err)
	resendsAfterStart := provider.ResendCalls

	next, err := service.ResendCode(context.Background(), session)
	require.NoError(t, err)

	require.Equal(t, session.Session, next.Session)
	require.Equal(t, passwordless.ChallengeConfirmSignUp, next.ChallengeName)
	require.Equal(t, resendsAfterStart+1, provider.ResendCalls)
}

func TestResendCodeOTPStartsFreshSession(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session := signIn(t, service, passwordless.StartOptions{PreferredChallenge: passwordless.MethodSMSOTP})

	next, err := service.ResendCode(context.Background(), session)
	require.NoError(t, err)

	require.NotEqual(t, session.Session, next.Session, "an OTP continuation token is single use")
	require.Equal(t, passwordless.ChallengeSMSOTP, next.ChallengeName)
	require.NotEmpty(t, provider.CurrentCode(next.Session))
}

func TestUpdateProfileAttributes(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session := signIn(t, service, passwordless.StartOptions{})
	result, err := service.ConfirmAuth(context.Background(), session, provider.CurrentCode(session.Session))
	require.NoError(t, err)

	err = service.UpdateProfileAttributes(context.Background(), result.Tokens.AccessToken, passwordless.UserProfileAttributes{
		Phone:    "5551234567",
		Location: "Austin, TX",
		Extra:    map[string]string{"referral": "friend", "newsletter": ""},
	})
	require.NoError(t, err)

	attrs := provider.UserAttributes(testEmail)
	require.Equal(t, "+15551234567", attrs["phone_number"], "bare national numbers gain the default country prefix")
	require.Equal(t, "Austin, TX", attrs["custom:location"])
	require.Equal(t, "friend", attrs["custom:referral"])
	require.NotContains(t, attrs, "custom:newsletter", "empty extras are skipped")
}

func TestUpdateProfileAttributesPreservesInternationalPhone(t *testing.T) {
	service, provider := newTestService(t)
	provider.SeedUser(testEmail, true)

	session := signIn(t, service, passwordless.StartOptions{})
	result, err := service.ConfirmAuth(context.Background(), session, provider.CurrentCode(session.Session))
	require.NoError(t, err)

	err = service.UpdateProfileAttributes(context.Background(), result.Tokens.AccessToken, passwordless.UserProfileAttributes{
		Phone: "+447911123456",
	})
	require.NoError(t, err)
	require.Equal(t, "+447911123456", provider.UserAttributes(testEmail)["phone_number"])
}

func TestUpdateProfileAttributesNoOpWhenEmpty(t *testing.T) {
	service, provider := newTestService(t)

	err := service.UpdateProfileAttributes(context.Background(), "access-whatever", passwordless.UserProfileAttributes{})
	require.NoError(t, err)
	require.Zero(t, provider.UpdateAttrCalls)
}

func TestMessageTableLookup(t *testing.T) {
	table := passwordless.DefaultMessages()

	err := errors.Wrap(&passwordless.ProviderError{Name: passwordless.ErrNameTooManyRequests}, "[Service.StartAuth]")
	require.Equal(t, "Too many attempts. Please wait a moment and try again.", table.Lookup(err))

	unknown := &passwordless.ProviderError{Name: "SomethingOddException", Message: "odd provider text"}
	require.Equal(t, "odd provider text", table.Lookup(unknown))

	require.Equal(t, table.Generic, table.Lookup(errors.New("network down")))
}

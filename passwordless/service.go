// Package passwordless implements the client side of a passwordless
// challenge-response authentication flow against an OTP-capable identity
// provider.
//
// The flow is:
//
//  1. User enters an email (and optionally a phone number).
//  2. The service creates the account if needed, which sends a verification
//     code.
//  3. User enters the verification code, confirming the account.
//  4. The service requests a login code (EMAIL_OTP/SMS_OTP).
//  5. User enters the login code and receives tokens.
package passwordless

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PendingConfirmationSession is the placeholder continuation token for
// sessions awaiting account confirmation. The provider issues no real session
// until the account is confirmed.
const PendingConfirmationSession = "PENDING_CONFIRMATION"

// ProfileCompletionSession marks the client-only profile step, which has no
// provider-side session at all.
const ProfileCompletionSession = "PROFILE_COMPLETION"

const (
	tempPasswordChars  = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789!@#$%"
	tempPasswordLength = 16

	usernameResponseKey = "USERNAME"
	answerResponseKey   = "ANSWER"
	emailOTPResponseKey = "EMAIL_OTP_CODE"
	smsOTPResponseKey   = "SMS_OTP_CODE"

	phoneAttribute    = "phone_number"
	emailAttribute    = "email"
	locationAttribute = "custom:location"
	customPrefix      = "custom:"
)

// Service translates the user intents "start", "confirm" and "resend" into
// provider calls, hiding the ambiguity between creating a new account and
// logging in an existing one.
type Service struct {
	provider           Provider
	timezoneAttribute  string
	timezoneValue      string
	defaultCountryCode string
}

// ServiceOption modifies a Service instance.
type ServiceOption func(*Service)

// WithTimezoneAttribute sets the provider attribute used to record the
// account timezone at sign-up. Pass an empty name to skip the attribute.
func WithTimezoneAttribute(name, value string) ServiceOption {
	return func(s *Service) {
		s.timezoneAttribute = name
		s.timezoneValue = value
	}
}

// WithDefaultCountryCode sets the country code prefixed onto phone values
// that arrive without a leading "+".
func WithDefaultCountryCode(code string) ServiceOption {
	return func(s *Service) {
		s.defaultCountryCode = code
	}
}

// NewService initializes the protocol client with its provider dependency.
func NewService(provider Provider, options ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, errors.New("[NewService] provider is required")
	}
	s := &Service{
		provider:           provider,
		timezoneAttribute:  "zoneinfo",
		timezoneValue:      "UTC",
		defaultCountryCode: "1",
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// StartAuth initiates passwordless authentication for email.
//
// Account creation is always attempted first. The provider's generic
// authenticate call reports "code sent" for non-existent users without
// actually sending anything, so existence must be established through the
// creation attempt and never trusted to the authenticate call alone.
//
// For new users a verification code is dispatched and the returned session is
// in CONFIRM_SIGN_UP. For existing confirmed users the provider's
// SELECT_CHALLENGE handshake is answered with the preferred channel and the
// returned session awaits a login code.
func (s *Service) StartAuth(ctx context.Context, email string, opts StartOptions) (*AuthSession, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, errors.New("[Service.StartAuth] email is required")
	}

	created, err := s.createNewUser(ctx, normalized, opts.PhoneNumber)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.StartAuth] createNewUser")
	}
	if created {
		log.Debug().Str("email", normalized).Msg("new user created, verification code sent")
		return &AuthSession{
			Username:           normalized,
			Email:              normalized,
			PhoneNumber:        opts.PhoneNumber,
			Session:            PendingConfirmationSession,
			ChallengeName:      ChallengeConfirmSignUp,
			PreferredChallenge: opts.PreferredChallenge,
			IsNewUser:          true,
		}, nil
	}

	// The account exists: run the normal authenticate handshake.
	out, err := s.provider.InitiateAuth(ctx, normalized)
	if err != nil {
		return s.startAuthFallback(ctx, normalized, opts, err)
	}

	if out.ChallengeName == ProviderChallengeSelectChallenge {
		// Mandatory two-step handshake: the provider asks the client to pick
		// a delivery channel before any code is sent.
		preferred := opts.PreferredChallenge
		if preferred == "" {
			preferred = MethodEmailOTP
		}
		out, err = s.provider.RespondToChallenge(ctx, RespondInput{
			ChallengeName: ProviderChallengeSelectChallenge,
			Session:       out.Session,
			Responses: map[string]string{
				usernameResponseKey: normalized,
				answerResponseKey:   string(preferred),
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "[Service.StartAuth] SELECT_CHALLENGE response")
		}
		return s.sessionFromChallenge(normalized, opts.PhoneNumber, preferred, out, preferred.Challenge()), nil
	}

	return s.sessionFromChallenge(normalized, opts.PhoneNumber, opts.PreferredChallenge, out, ChallengeEmailOTP), nil
}

// startAuthFallback handles InitiateAuth rejections that the creation-first
// strategy makes recoverable.
func (s *Service) startAuthFallback(ctx context.Context, username string, opts StartOptions, cause error) (*AuthSession, error) {
	switch ProviderErrorName(cause) {
	case ErrNameUserNotConfirmed:
		// The account exists but was never confirmed: resend the
		// confirmation code and restart from CONFIRM_SIGN_UP. "User not
		// found" must never surface in this branch.
		if err := s.provider.ResendConfirmationCode(ctx, username); err != nil {
			log.Warn().Err(err).Str("username", username).Msg("failed to resend confirmation code")
		}
		return &AuthSession{
			Username:           username,
			Email:              username,
			PhoneNumber:        opts.PhoneNumber,
			Session:            PendingConfirmationSession,
			ChallengeName:      ChallengeConfirmSignUp,
			PreferredChallenge: opts.PreferredChallenge,
		}, nil
	case ErrNameUserNotFound:
		// Unreachable given the creation-first strategy; flag it rather than
		// swallowing it.
		log.Error().Str("username", username).Msg("user not found after creation attempt")
		return nil, errors.Wrap(ErrUserNotFoundUnreachable, cause.Error())
	}
	return nil, errors.Wrap(cause, "[Service.StartAuth] InitiateAuth")
}

func (s *Service) sessionFromChallenge(username, phoneNumber string, preferred Method, out ChallengeOutput, fallback Challenge) *AuthSession {
	challenge := fallback
	if out.ChallengeName != "" {
		challenge = ProviderIssued(out.ChallengeName)
	}
	return &AuthSession{
		Username:            username,
		Email:               username,
		PhoneNumber:         phoneNumber,
		Session:             out.Session,
		ChallengeName:       challenge,
		ChallengeParameters: out.ChallengeParameters,
		PreferredChallenge:  preferred,
		Tokens:              out.Tokens,
	}
}

// createNewUser attempts account creation. It returns false when the account
// already exists, and propagates any other provider rejection.
func (s *Service) createNewUser(ctx context.Context, email, phoneNumber string) (bool, error) {
	attributes := map[string]string{emailAttribute: email}
	if phoneNumber != "" {
		attributes[phoneAttribute] = phoneNumber
	}
	if s.timezoneAttribute != "" {
		attributes[s.timezoneAttribute] = s.timezoneValue
	}

	out, err := s.provider.SignUp(ctx, SignUpInput{
		Username:     email,
		TempPassword: generateTempPassword(),
		Attributes:   attributes,
	})
	if err != nil {
		if IsProviderError(err, ErrNameUsernameExists) {
			return false, nil
		}
		return false, err
	}

	// Some pool configurations create the account without dispatching the
	// verification code; send it explicitly in that case.
	if !out.CodeDelivered {
		if err := s.provider.ResendConfirmationCode(ctx, email); err != nil {
			return true, errors.Wrap(err, "resend after silent sign-up")
		}
	}
	return true, nil
}

// ConfirmAuth submits a verification or login code.
//
// For CONFIRM_SIGN_UP sessions the account is confirmed; new users are then
// offered the client-only profile step, existing users are re-initiated to
// obtain a login challenge. For OTP sessions a successful response must carry
// tokens; their absence is a hard error.
func (s *Service) ConfirmAuth(ctx context.Context, session *AuthSession, code string) (*Result, error) {
	if !session.Valid() {
		return nil, errors.Wrap(ErrInvalidSession, "[Service.ConfirmAuth]")
	}
	trimmed := strings.TrimSpace(code)

	if session.ChallengeName == ChallengeConfirmSignUp {
		if err := s.provider.ConfirmSignUp(ctx, session.Username, trimmed); err != nil {
			return nil, errors.Wrap(err, "[Service.ConfirmAuth] ConfirmSignUp")
		}
		log.Debug().Str("username", session.Username).Msg("account confirmed")

		if session.IsNewUser {
			next := *session
			next.ChallengeName = ChallengeProfileCompletion
			next.Session = ProfileCompletionSession
			return &Result{NeedsProfileCompletion: true, NextSession: &next}, nil
		}

		nextSession, err := s.StartAuth(ctx, session.Username, StartOptions{
			PreferredChallenge: session.PreferredChallenge,
			PhoneNumber:        session.PhoneNumber,
		})
		if err != nil {
			return nil, errors.Wrap(err, "[Service.ConfirmAuth] StartAuth after confirmation")
		}
		return &Result{NextSession: nextSession}, nil
	}

	if !session.ChallengeName.IsOTP() {
		return nil, errors.Errorf("[Service.ConfirmAuth] challenge %q does not accept a code", session.ChallengeName)
	}

	// The provider's expected code key is not stable across configurations,
	// so the code is submitted under the channel-specific key and the
	// generic ANSWER key simultaneously.
	responses := map[string]string{
		usernameResponseKey: session.Username,
		answerResponseKey:   trimmed,
	}
	switch session.ChallengeName {
	case ChallengeEmailOTP:
		responses[emailOTPResponseKey] = trimmed
	case ChallengeSMSOTP:
		responses[smsOTPResponseKey] = trimmed
	}

	out, err := s.provider.RespondToChallenge(ctx, RespondInput{
		ChallengeName: session.ChallengeName.Provider(),
		Session:       session.Session,
		Responses:     responses,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ConfirmAuth] RespondToChallenge")
	}
	if out.Tokens == nil {
		return nil, ErrNoTokens
	}
	return &Result{Tokens: out.Tokens}, nil
}

// ResendCode requests a fresh code for the session. A CONFIRM_SIGN_UP session
// resends on the same session; an OTP session's continuation token is single
// use, so the flow restarts with a fresh challenge handshake.
func (s *Service) ResendCode(ctx context.Context, session *AuthSession) (*AuthSession, error) {
	if !session.Valid() {
		return nil, errors.Wrap(ErrInvalidSession, "[Service.ResendCode]")
	}

	if session.ChallengeName == ChallengeConfirmSignUp {
		if err := s.provider.ResendConfirmationCode(ctx, session.Username); err != nil {
			return nil, errors.Wrap(err, "[Service.ResendCode] ResendConfirmationCode")
		}
		return session, nil
	}

	email := session.Email
	if email == "" {
		email = session.Username
	}
	return s.StartAuth(ctx, email, StartOptions{
		PreferredChallenge: session.PreferredChallenge,
		PhoneNumber:        session.PhoneNumber,
	})
}

// UpdateProfileAttributes stores optional profile fields on the account.
// This is strictly best-effort: failures here must not invalidate tokens that
// were already issued, so callers log and move on.
func (s *Service) UpdateProfileAttributes(ctx context.Context, accessToken string, attrs UserProfileAttributes) error {
	if accessToken == "" {
		return errors.New("[Service.UpdateProfileAttributes] access token is required")
	}

	attributes := make(map[string]string)
	if attrs.Phone != "" {
		phone := attrs.Phone
		if !strings.HasPrefix(phone, "+") {
			phone = "+" + s.defaultCountryCode + phone
		}
		attributes[phoneAttribute] = phone
	}
	if attrs.Location != "" {
		attributes[locationAttribute] = attrs.Location
	}
	for key, value := range attrs.Extra {
		if value == "" {
			continue
		}
		name := key
		if !strings.HasPrefix(name, customPrefix) {
			name = customPrefix + name
		}
		attributes[name] = value
	}
	if len(attributes) == 0 {
		return nil
	}

	if err := s.provider.UpdateUserAttributes(ctx, accessToken, attributes); err != nil {
		return errors.Wrap(err, "[Service.UpdateProfileAttributes] UpdateUserAttributes")
	}
	return nil
}

// generateTempPassword builds the throwaway password the provider's sign-up
// contract requires. It is never used after account creation.
func generateTempPassword() string {
	var b strings.Builder
	b.WriteString("Temp")
	max := big.NewInt(int64(len(tempPasswordChars)))
	for i := 0; i < tempPasswordLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a fixed index rather than aborting sign-up.
			n = big.NewInt(int64(i % len(tempPasswordChars)))
		}
		b.WriteByte(tempPasswordChars[n.Int64()])
	}
	b.WriteString("!1")
	return b.String()
}

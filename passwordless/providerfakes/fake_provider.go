// Package providerfakes provides an in-memory identity provider that mimics
// the challenge-response quirks of the real one, including the phantom
// challenge it issues for accounts that do not exist.
package providerfakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-passwordless/passwordless"
)

var _ passwordless.Provider = (*FakeProvider)(nil)

type fakeUser struct {
	Username         string
	Confirmed        bool
	Attributes       map[string]string
	ConfirmationCode string
}

type fakeSession struct {
	Username  string
	Challenge passwordless.ProviderChallenge
	Code      string
}

// FakeProvider is a threadsafe in-memory stand-in for the identity provider.
// The zero knobs reproduce the happy path; tests flip knobs to reproduce the
// provider's failure modes.
type FakeProvider struct {
	lock     sync.Mutex
	users    map[string]*fakeUser
	sessions map[string]*fakeSession
	tokens   map[string]string // access token to username

	// SignUpCodeDelivered reports whether SignUp dispatches the verification
	// code itself. Some pool configurations do not.
	SignUpCodeDelivered bool

	// PhantomChallengeForUnknownUsers makes InitiateAuth issue an EMAIL_OTP
	// challenge for accounts that do not exist instead of rejecting, matching
	// the real provider's behavior. No code is "sent" in that case.
	PhantomChallengeForUnknownUsers bool

	// OmitTokens makes a correct OTP response succeed without tokens.
	OmitTokens bool

	// ChallengeParameters is attached to every issued OTP challenge.
	ChallengeParameters map[string]string

	// FailNext maps a method name (e.g. "SignUp") to an error returned once
	// on the next call.
	FailNext map[string]error

	// RespondGate, when set, blocks RespondToChallenge until the channel is
	// closed, holding a provider call in flight for concurrency tests.
	RespondGate chan struct{}

	// Call counters.
	SignUpCalls       int
	InitiateCalls     int
	RespondCalls      int
	ConfirmCalls      int
	ResendCalls       int
	UpdateAttrCalls   int
	LastResponses     map[string]string
	UpdatedAttributes map[string]string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		users:               make(map[string]*fakeUser),
		sessions:            make(map[string]*fakeSession),
		tokens:              make(map[string]string),
		SignUpCodeDelivered: true,
		FailNext:            make(map[string]error),
	}
}

// SeedUser registers a pre-existing account.
func (p *FakeProvider) SeedUser(username string, confirmed bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.users[username] = &fakeUser{
		Username:   username,
		Confirmed:  confirmed,
		Attributes: make(map[string]string),
	}
}

// CurrentCode returns the code an open session expects.
func (p *FakeProvider) CurrentCode(session string) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	if s, ok := p.sessions[session]; ok {
		return s.Code
	}
	return ""
}

// ConfirmationCode returns the pending sign-up confirmation code for a user.
func (p *FakeProvider) ConfirmationCode(username string) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	if u, ok := p.users[username]; ok {
		return u.ConfirmationCode
	}
	return ""
}

// UserAttributes returns a copy of the stored attributes for a user.
func (p *FakeProvider) UserAttributes(username string) map[string]string {
	p.lock.Lock()
	defer p.lock.Unlock()
	u, ok := p.users[username]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(u.Attributes))
	for k, v := range u.Attributes {
		out[k] = v
	}
	return out
}

func (p *FakeProvider) failNext(method string) error {
	if err, ok := p.FailNext[method]; ok {
		delete(p.FailNext, method)
		return err
	}
	return nil
}

func (p *FakeProvider) newCode() string {
	return fmt.Sprintf("%06d", len(p.sessions)*111111%1000000)
}

func (p *FakeProvider) SignUp(_ context.Context, in passwordless.SignUpInput) (passwordless.SignUpOutput, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.SignUpCalls++

	if err := p.failNext("SignUp"); err != nil {
		return passwordless.SignUpOutput{}, err
	}
	if _, ok := p.users[in.Username]; ok {
		return passwordless.SignUpOutput{}, &passwordless.ProviderError{
			Name:    passwordless.ErrNameUsernameExists,
			Message: "An account with the given email already exists.",
		}
	}

	attrs := make(map[string]string, len(in.Attributes))
	for k, v := range in.Attributes {
		attrs[k] = v
	}
	user := &fakeUser{Username: in.Username, Attributes: attrs}
	if p.SignUpCodeDelivered {
		user.ConfirmationCode = "111111"
	}
	p.users[in.Username] = user

	return passwordless.SignUpOutput{
		CodeDelivered: p.SignUpCodeDelivered,
		Destination:   maskEmail(in.Username),
	}, nil
}

func (p *FakeProvider) InitiateAuth(_ context.Context, username string) (passwordless.ChallengeOutput, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.InitiateCalls++

	if err := p.failNext("InitiateAuth"); err != nil {
		return passwordless.ChallengeOutput{}, err
	}

	user, ok := p.users[username]
	if !ok {
		if p.PhantomChallengeForUnknownUsers {
			// The real provider hides user existence: it issues a challenge
			// but never delivers a code.
			session := uuid.New().String()
			p.sessions[session] = &fakeSession{Username: username, Challenge: passwordless.ProviderChallengeEmailOTP}
			return passwordless.ChallengeOutput{
				ChallengeName: passwordless.ProviderChallengeEmailOTP,
				Session:       session,
			}, nil
		}
		return passwordless.ChallengeOutput{}, &passwordless.ProviderError{
			Name: passwordless.ErrNameUserNotFound,
		}
	}
	if !user.Confirmed {
		return passwordless.ChallengeOutput{}, &passwordless.ProviderError{
			Name:    passwordless.ErrNameUserNotConfirmed,
			Message: "User is not confirmed.",
		}
	}

	session := uuid.New().String()
	p.sessions[session] = &fakeSession{Username: username, Challenge: passwordless.ProviderChallengeSelectChallenge}
	return passwordless.ChallengeOutput{
		ChallengeName: passwordless.ProviderChallengeSelectChallenge,
		Session:       session,
	}, nil
}

func (p *FakeProvider) RespondToChallenge(_ context.Context, in passwordless.RespondInput) (passwordless.ChallengeOutput, error) {
	if gate := p.RespondGate; gate != nil {
		<-gate
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	p.RespondCalls++
	p.LastResponses = in.Responses

	if err := p.failNext("RespondToChallenge"); err != nil {
		return passwordless.ChallengeOutput{}, err
	}

	sess, ok := p.sessions[in.Session]
	if !ok || sess.Challenge != in.ChallengeName {
		return passwordless.ChallengeOutput{}, &passwordless.ProviderError{
			Name:    passwordless.ErrNameNotAuthorized,
			Message: "Invalid session for the user.",
		}
	}
	// Continuation tokens are single use.
	delete(p.sessions, in.Session)

	if in.ChallengeName == passwordless.ProviderChallengeSelectChallenge {
		answer := passwordless.ProviderChallenge(in.Responses["ANSWER"])
		if answer != passwordless.ProviderChallengeEmailOTP && answer != passwordless.ProviderChallengeSMSOTP {
			return passwordless.ChallengeOutput{}, &passwordless.ProviderError{
				Name:    passwordless.ErrNameInvalidParameter,
				Message: "Invalid challenge selection.",
			}
		}
		next := uuid.New().String()
		p.sessions[next] = &fakeSession{Username: sess.Username, Challenge: answer, Code: p.newCode()}
		return passwordless.ChallengeOutput{
			ChallengeName:       answer,
			Session:             next,
			ChallengeParameters: p.ChallengeParameters,
		}, nil
	}

	code := in.Responses["ANSWER"]
	switch in.ChallengeName {
	case passwordless.ProviderChallengeEmailOTP:
		if v := in.Responses["EMAIL_OTP_CODE"]; v != "" {
			code = v
		}
	case passwordless.ProviderChallengeSMSOTP:
		if v := in.Responses["SMS_OTP_CODE"]; v != "" {
			code = v
		}
	}
	if code != sess.Code {
		return passwordless.ChallengeOutput{}, &passwordless.ProviderError{
			Name:    passwordless.ErrNameCodeMismatch,
			Message: "Invalid verification code provided, please try again.",
		}
	}
	if p.OmitTokens {
		return passwordless.ChallengeOutput{Session: ""}, nil
	}

	access := "access-" + uuid.New().String()
	p.tokens[access] = sess.Username
	return passwordless.ChallengeOutput{
		Tokens: &passwordless.Tokens{
			IDToken:      "id-" + sess.Username,
			AccessToken:  access,
			RefreshToken: "refresh-" + sess.Username,
			ExpiresIn:    3600,
			TokenType:    "Bearer",
		},
	}, nil
}

func (p *FakeProvider) ConfirmSignUp(_ context.Context, username, code string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.ConfirmCalls++

	if err := p.failNext("ConfirmSignUp"); err != nil {
		return err
	}
	user, ok := p.users[username]
	if !ok {
		return &passwordless.ProviderError{Name: passwordless.ErrNameUserNotFound}
	}
	if user.ConfirmationCode == "" || code != user.ConfirmationCode {
		return &passwordless.ProviderError{
			Name:    passwordless.ErrNameCodeMismatch,
			Message: "Invalid verification code provided, please try again.",
		}
	}
	user.Confirmed = true
	user.ConfirmationCode = ""
	return nil
}

func (p *FakeProvider) ResendConfirmationCode(_ context.Context, username string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.ResendCalls++

	if err := p.failNext("ResendConfirmationCode"); err != nil {
		return err
	}
	user, ok := p.users[username]
	if !ok {
		return &passwordless.ProviderError{Name: passwordless.ErrNameUserNotFound}
	}
	user.ConfirmationCode = "111111"
	return nil
}

func (p *FakeProvider) UpdateUserAttributes(_ context.Context, accessToken string, attributes map[string]string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.UpdateAttrCalls++
	p.UpdatedAttributes = attributes

	if err := p.failNext("UpdateUserAttributes"); err != nil {
		return err
	}
	username, ok := p.tokens[accessToken]
	if !ok {
		return &passwordless.ProviderError{
			Name:    passwordless.ErrNameNotAuthorized,
			Message: "Access Token has been revoked",
		}
	}
	user := p.users[username]
	for k, v := range attributes {
		user.Attributes[k] = v
	}
	return nil
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return email
	}
	return email[:1] + "***@" + email[at+1:]
}

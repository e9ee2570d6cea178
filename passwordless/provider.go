package passwordless

import (
	"context"

	"github.com/pkg/errors"
)

// Provider error names as reported by the identity provider. The protocol
// client branches on these; anything else falls through to the generic
// message path.
const (
	ErrNameUsernameExists   = "UsernameExistsException"
	ErrNameUserNotConfirmed = "UserNotConfirmedException"
	ErrNameUserNotFound     = "UserNotFoundException"
	ErrNameNotAuthorized    = "NotAuthorizedException"
	ErrNameTooManyRequests  = "TooManyRequestsException"
	ErrNameInvalidParameter = "InvalidParameterException"
	ErrNameCodeMismatch     = "CodeMismatchException"
	ErrNameExpiredCode      = "ExpiredCodeException"
)

// ProviderError is a provider rejection with its raw error name preserved for
// the caller's error-mapping table.
type ProviderError struct {
	Name    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// ProviderErrorName extracts the provider error name from an error chain, or
// "" if the error did not originate from the provider.
func ProviderErrorName(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Name
	}
	return ""
}

// IsProviderError reports whether err is a provider rejection with the given
// name.
func IsProviderError(err error, name string) bool {
	return ProviderErrorName(err) == name
}

// SignUpInput describes an account-creation attempt. The temporary password
// is required by the provider's contract but never used afterwards.
type SignUpInput struct {
	Username     string
	TempPassword string
	Attributes   map[string]string
}

// SignUpOutput reports whether the provider dispatched a verification code as
// part of account creation.
type SignUpOutput struct {
	CodeDelivered bool
	Destination   string
}

// RespondInput answers an outstanding challenge. Session is the continuation
// token from the previous protocol step.
type RespondInput struct {
	ChallengeName ProviderChallenge
	Session       string
	Responses     map[string]string
}

// ChallengeOutput is the provider's answer to an initiate or
// respond-to-challenge call.
type ChallengeOutput struct {
	ChallengeName       ProviderChallenge
	Session             string
	ChallengeParameters map[string]string
	Tokens              *Tokens
}

// Provider is the narrow wire-level contract against the identity provider.
// Implementations translate their SDK's failures into *ProviderError so the
// protocol client can branch on raw error names.
type Provider interface {
	SignUp(ctx context.Context, in SignUpInput) (SignUpOutput, error)
	InitiateAuth(ctx context.Context, username string) (ChallengeOutput, error)
	RespondToChallenge(ctx context.Context, in RespondInput) (ChallengeOutput, error)
	ConfirmSignUp(ctx context.Context, username, code string) error
	ResendConfirmationCode(ctx context.Context, username string) error
	UpdateUserAttributes(ctx context.Context, accessToken string, attributes map[string]string) error
}

package passwordless

import "github.com/pkg/errors"

var (
	// ErrNoTokens is the deliberately unrecoverable condition: the provider
	// accepted a challenge response but returned no tokens.
	ErrNoTokens = errors.New("authentication failed - no tokens returned")

	// ErrUserNotFoundUnreachable flags a user-not-found rejection after the
	// creation-first strategy already established the account exists. Its
	// occurrence is an internal invariant violation, not a user mistake.
	ErrUserNotFoundUnreachable = errors.New("user not found after creation attempt")

	// ErrInvalidSession rejects protocol calls made with a session that fails
	// the validity invariant.
	ErrInvalidSession = errors.New("invalid auth session")
)

// MessageTable maps provider error names to user-facing sentences. Lookups
// for unknown names fall back to the provider's own message text when
// present, else to the table's Generic entry.
type MessageTable struct {
	Messages map[string]string
	Generic  string
}

// DefaultMessages covers the provider rejections the dialog reports with a
// specific sentence.
func DefaultMessages() MessageTable {
	return MessageTable{
		Messages: map[string]string{
			ErrNameInvalidParameter: "Invalid parameters. Double-check your details and try again.",
			ErrNameNotAuthorized:    "Authentication failed. Please check your credentials.",
			ErrNameTooManyRequests:  "Too many attempts. Please wait a moment and try again.",
			ErrNameUserNotFound:     "We couldn't find that account. Please try again.",
		},
		Generic: "We couldn't send the code. Please try again.",
	}
}

// Lookup resolves err to a user-facing sentence.
func (t MessageTable) Lookup(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if msg, ok := t.Messages[pe.Name]; ok {
			return msg
		}
		if pe.Message != "" {
			return pe.Message
		}
	}
	return t.Generic
}

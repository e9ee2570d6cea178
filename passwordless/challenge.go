package passwordless

import (
	"encoding/json"
	"fmt"
)

// ProviderChallenge names a challenge step issued by the identity provider as
// part of its challenge-response handshake.
type ProviderChallenge string

const (
	ProviderChallengeConfirmSignUp   ProviderChallenge = "CONFIRM_SIGN_UP"
	ProviderChallengeSelectChallenge ProviderChallenge = "SELECT_CHALLENGE"
	ProviderChallengeEmailOTP        ProviderChallenge = "EMAIL_OTP"
	ProviderChallengeSMSOTP          ProviderChallenge = "SMS_OTP"
)

// ClientStep names a step the orchestrator invents on top of the provider
// protocol. The provider has no concept of these.
type ClientStep string

const ClientStepProfileCompletion ClientStep = "PROFILE_COMPLETION"

// Challenge is a tagged union: either a provider-issued challenge or a
// client-only step, never both. The zero value means "no challenge".
type Challenge struct {
	provider ProviderChallenge
	client   ClientStep
}

var (
	ChallengeConfirmSignUp     = Challenge{provider: ProviderChallengeConfirmSignUp}
	ChallengeSelectChallenge   = Challenge{provider: ProviderChallengeSelectChallenge}
	ChallengeEmailOTP          = Challenge{provider: ProviderChallengeEmailOTP}
	ChallengeSMSOTP            = Challenge{provider: ProviderChallengeSMSOTP}
	ChallengeProfileCompletion = Challenge{client: ClientStepProfileCompletion}
)

// ProviderIssued wraps a raw provider challenge name.
func ProviderIssued(name ProviderChallenge) Challenge {
	return Challenge{provider: name}
}

// IsClientOnly reports whether the challenge was invented by the orchestrator
// rather than issued by the provider.
func (c Challenge) IsClientOnly() bool {
	return c.client != ""
}

// IsZero reports whether no challenge is set.
func (c Challenge) IsZero() bool {
	return c.provider == "" && c.client == ""
}

// Provider returns the provider-issued challenge name, or "" for client-only
// steps.
func (c Challenge) Provider() ProviderChallenge {
	return c.provider
}

// IsOTP reports whether the challenge awaits a one-time login code.
func (c Challenge) IsOTP() bool {
	return c.provider == ProviderChallengeEmailOTP || c.provider == ProviderChallengeSMSOTP
}

// Known reports whether the challenge is one of the values the orchestrator
// understands. Sessions carrying anything else are treated as invalid.
func (c Challenge) Known() bool {
	switch c {
	case ChallengeConfirmSignUp, ChallengeSelectChallenge, ChallengeEmailOTP, ChallengeSMSOTP, ChallengeProfileCompletion:
		return true
	}
	return false
}

func (c Challenge) String() string {
	if c.client != "" {
		return string(c.client)
	}
	return string(c.provider)
}

// MarshalJSON encodes the challenge as its wire name so snapshots stay
// readable and stable.
func (c Challenge) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a challenge name, routing client-only names back to
// the client side of the union.
func (c *Challenge) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("challenge: %w", err)
	}
	switch name {
	case "":
		*c = Challenge{}
	case string(ClientStepProfileCompletion):
		*c = ChallengeProfileCompletion
	default:
		*c = Challenge{provider: ProviderChallenge(name)}
	}
	return nil
}

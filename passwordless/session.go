package passwordless

// Method is the delivery channel for one-time codes.
type Method string

const (
	MethodEmailOTP Method = "EMAIL_OTP"
	MethodSMSOTP   Method = "SMS_OTP"
)

// Challenge returns the provider challenge matching the delivery method.
func (m Method) Challenge() Challenge {
	if m == MethodSMSOTP {
		return ChallengeSMSOTP
	}
	return ChallengeEmailOTP
}

// Tokens is the terminal artifact of a successful authentication. Once
// obtained the session is complete and is not persisted further.
type Tokens struct {
	IDToken      string `json:"idToken,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int32  `json:"expiresIn,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
}

// AuthSession is the live protocol handle threaded through the
// challenge-response flow. Session is the provider's opaque continuation
// token and must be passed unchanged into the next call.
type AuthSession struct {
	Username            string            `json:"username"`
	Email               string            `json:"email,omitempty"`
	PhoneNumber         string            `json:"phoneNumber,omitempty"`
	Session             string            `json:"session"`
	ChallengeName       Challenge         `json:"challengeName"`
	ChallengeParameters map[string]string `json:"challengeParameters,omitempty"`
	PreferredChallenge  Method            `json:"preferredChallenge,omitempty"`
	IsNewUser           bool              `json:"isNewUser,omitempty"`
	Tokens              *Tokens           `json:"tokens,omitempty"`
}

// Valid reports whether the session can be fed back into the protocol:
// a non-empty continuation token and a known challenge. An OTP challenge
// without tokens means "awaiting a code", never "authenticated".
func (s *AuthSession) Valid() bool {
	if s == nil {
		return false
	}
	return s.Session != "" && s.ChallengeName.Known()
}

// AwaitingCode reports whether the user is expected to type a code next.
func (s *AuthSession) AwaitingCode() bool {
	if s == nil {
		return false
	}
	return s.ChallengeName == ChallengeConfirmSignUp || s.ChallengeName.IsOTP()
}

// Result is the outcome of confirming a code.
type Result struct {
	// Tokens is set once authentication fully succeeds.
	Tokens *Tokens
	// NextSession carries the follow-up challenge when the flow continues.
	NextSession *AuthSession
	// NeedsProfileCompletion signals the optional client-only profile step
	// offered to newly created accounts.
	NeedsProfileCompletion bool
}

// StartOptions tune a StartAuth call.
type StartOptions struct {
	PreferredChallenge Method
	PhoneNumber        string
}

// UserProfileAttributes holds the optional profile fields collected after
// account confirmation. Extra entries become custom provider attributes.
type UserProfileAttributes struct {
	Phone    string            `json:"phone,omitempty"`
	Location string            `json:"location,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Empty reports whether there is nothing to save.
func (a UserProfileAttributes) Empty() bool {
	return a.Phone == "" && a.Location == "" && len(a.Extra) == 0
}

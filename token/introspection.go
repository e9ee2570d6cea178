package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// NowTimeFunc is the clock used for expiry checks, replaceable in tests.
var NowTimeFunc = time.Now

// Introspection is the metadata peeked from a token without verifying its
// signature. Only safe for tokens the caller already trusts the origin of
// (its own cookie jar); anything security-relevant goes through Verifier.
type Introspection struct {
	Active   bool     `json:"active"`
	Exp      *int64   `json:"exp,omitempty"`
	Iat      *int64   `json:"iat,omitempty"`
	Iss      *string  `json:"iss,omitempty"`
	Sub      *string  `json:"sub,omitempty"`
	Username string   `json:"username,omitempty"`
	Groups   []string `json:"groups,omitempty"`
}

// Introspect parses a token without signature verification and reports
// whether it is still within its validity window.
func Introspect(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, nil
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return &Introspection{Active: false}, errors.Wrap(err, "[Introspect] ParseUnverified")
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return &Introspection{Active: false}, errors.New("[Introspect] error extracting claims")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	username, _ := claims["username"].(string)
	if username == "" {
		username, _ = claims["cognito:username"].(string)
	}

	var groups []string
	if rawGroups, ok := claims[groupsClaim].([]any); ok {
		for _, g := range rawGroups {
			if s, ok := g.(string); ok {
				groups = append(groups, s)
			}
		}
	}

	iatInt := int64(iat)
	expInt := int64(exp)

	active := expInt == 0 || NowTimeFunc().Unix() <= expInt

	return &Introspection{
		Active:   active,
		Exp:      &expInt,
		Iat:      &iatInt,
		Iss:      &iss,
		Sub:      &sub,
		Username: username,
		Groups:   groups,
	}, nil
}

// IsExpired reports whether the token's exp claim has passed. Malformed
// tokens count as expired.
func IsExpired(rawToken string) bool {
	introspection, err := Introspect(rawToken)
	if err != nil {
		return true
	}
	return !introspection.Active
}

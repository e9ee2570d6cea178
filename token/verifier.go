// Package token verifies the identity provider's JWTs and maps their group
// claims onto the site's role ladder. Tokens are issued elsewhere (by the
// provider); this package never signs anything.
package token

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-passwordless/internal/utils"
)

const groupsClaim = "cognito:groups"

// VerifiedUser is the result of a successful token verification.
type VerifiedUser struct {
	Subject  string
	Username string
	Claims   map[string]any
	Role     Role
}

// Verifier checks ID and access tokens against the user pool's OIDC issuer.
// Access tokens carry no aud claim, so they are verified with the client ID
// check skipped.
type Verifier struct {
	idVerifier     *oidc.IDTokenVerifier
	accessVerifier *oidc.IDTokenVerifier
}

// IssuerURL builds the user pool's OIDC issuer.
func IssuerURL(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// NewVerifier discovers the pool's OIDC configuration and JWKS.
func NewVerifier(ctx context.Context, region, userPoolID, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, IssuerURL(region, userPoolID))
	if err != nil {
		return nil, errors.Wrap(err, "[NewVerifier] NewProvider")
	}
	return &Verifier{
		idVerifier:     provider.Verifier(&oidc.Config{ClientID: clientID}),
		accessVerifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
	}, nil
}

// Verify accepts either an ID token or an access token, trying ID first.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*VerifiedUser, error) {
	verified, err := v.idVerifier.Verify(ctx, rawToken)
	if err != nil {
		verified, err = v.accessVerifier.Verify(ctx, rawToken)
		if err != nil {
			return nil, errors.Wrap(err, "[Verifier.Verify]")
		}
	}

	claims := make(map[string]any)
	if err := verified.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[Verifier.Verify] Claims")
	}

	var groups []string
	if raw, ok := claims[groupsClaim].([]any); ok {
		groups = utils.ToStringSlice(raw)
	}

	username, _ := claims["username"].(string)
	if username == "" {
		username, _ = claims["cognito:username"].(string)
	}
	if username == "" {
		username, _ = claims["email"].(string)
	}

	return &VerifiedUser{
		Subject:  verified.Subject,
		Username: username,
		Claims:   claims,
		Role:     RoleFromGroups(groups),
	}, nil
}

// VerifyRequest extracts candidate tokens from the request (bearer header,
// then the ID and access token cookies) and returns the first that verifies,
// or nil when none do. Callers treat nil as anonymous, never as an error.
func (v *Verifier) VerifyRequest(ctx context.Context, r *http.Request) *VerifiedUser {
	for _, raw := range candidateTokens(r) {
		user, err := v.Verify(ctx, raw)
		if err == nil {
			return user
		}
	}
	return nil
}

func candidateTokens(r *http.Request) []string {
	var candidates []string
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		candidates = append(candidates, strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(IDTokenCookie); err == nil && c.Value != "" {
		candidates = append(candidates, c.Value)
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		candidates = append(candidates, c.Value)
	}
	return candidates
}

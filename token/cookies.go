package token

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-passwordless/passwordless"
)

// Cookie names for provider-issued tokens. HttpOnly so page scripts never see
// token material.
const (
	IDTokenCookie      = "id_token"
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

const (
	defaultTokenMaxAge = 3600
	refreshTokenMaxAge = 30 * 24 * 60 * 60
)

func tokenCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// WriteTokens sets the token cookies on the response. Absent tokens are
// skipped rather than cleared.
func WriteTokens(w http.ResponseWriter, tokens passwordless.Tokens, secure bool) {
	maxAge := defaultTokenMaxAge
	if tokens.ExpiresIn > 0 {
		maxAge = int(tokens.ExpiresIn)
	}
	if tokens.IDToken != "" {
		http.SetCookie(w, tokenCookie(IDTokenCookie, tokens.IDToken, maxAge, secure))
	}
	if tokens.AccessToken != "" {
		http.SetCookie(w, tokenCookie(AccessTokenCookie, tokens.AccessToken, maxAge, secure))
	}
	if tokens.RefreshToken != "" {
		http.SetCookie(w, tokenCookie(RefreshTokenCookie, tokens.RefreshToken, refreshTokenMaxAge, secure))
	}
}

// ClearTokens expires all token cookies.
func ClearTokens(w http.ResponseWriter, secure bool) {
	for _, name := range []string{IDTokenCookie, AccessTokenCookie, RefreshTokenCookie} {
		cookie := tokenCookie(name, "", -1, secure)
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

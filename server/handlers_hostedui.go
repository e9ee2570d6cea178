package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/jrsteele09/go-passwordless/token"
)

// Transient cookies for the redirect round trip. Short-lived and HttpOnly.
const (
	pkceVerifierCookie = "pkce_verifier"
	oauthStateCookie   = "oauth_state"
	returnToCookie     = "return_to"

	transientCookieMaxAge = 600
)

func (s *Server) transientCookie(name, value string) *http.Cookie {
	maxAge := transientCookieMaxAge
	if value == "" {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies(),
		SameSite: http.SameSiteLaxMode,
	}
}

// LoginHandler starts the redirect-based login: generates a PKCE verifier and
// state, parks them in cookies, and sends the browser to the provider's
// hosted sign-in page.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oauth == nil {
			writeJSONError(w, http.StatusNotFound, "hosted login is not configured")
			return
		}

		verifier := oauth2.GenerateVerifier()
		state := oauth2.GenerateVerifier()

		http.SetCookie(w, s.transientCookie(pkceVerifierCookie, verifier))
		http.SetCookie(w, s.transientCookie(oauthStateCookie, state))
		if returnTo := safeReturnPath(r.URL.Query().Get("return_to")); returnTo != "" {
			http.SetCookie(w, s.transientCookie(returnToCookie, returnTo))
		}

		authURL := s.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler finishes the redirect flow: checks state, exchanges the
// code with the stashed PKCE verifier, and turns the provider's tokens into
// cookies.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oauth == nil {
			writeJSONError(w, http.StatusNotFound, "hosted login is not configured")
			return
		}

		stateCookie, err := r.Cookie(oauthStateCookie)
		if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
			writeJSONError(w, http.StatusBadRequest, "state mismatch")
			return
		}
		verifierCookie, err := r.Cookie(pkceVerifierCookie)
		if err != nil || verifierCookie.Value == "" {
			writeJSONError(w, http.StatusBadRequest, "missing login verifier")
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			writeJSONError(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		exchanged, err := s.oauth.Exchange(r.Context(), code, oauth2.VerifierOption(verifierCookie.Value))
		if err != nil {
			log.Error().Err(err).Msg("code exchange failed")
			writeJSONError(w, http.StatusBadGateway, "token exchange failed")
			return
		}

		tokens := passwordless.Tokens{
			AccessToken:  exchanged.AccessToken,
			RefreshToken: exchanged.RefreshToken,
			TokenType:    exchanged.TokenType,
		}
		if idToken, ok := exchanged.Extra("id_token").(string); ok {
			tokens.IDToken = idToken
		}
		if !exchanged.Expiry.IsZero() {
			tokens.ExpiresIn = int32(time.Until(exchanged.Expiry).Seconds())
		}
		token.WriteTokens(w, tokens, s.secureCookies())
		s.bus.PublishAuthChanged(true)

		returnTo := "/"
		if c, err := r.Cookie(returnToCookie); err == nil {
			if path := safeReturnPath(c.Value); path != "" {
				returnTo = path
			}
		}

		http.SetCookie(w, s.transientCookie(pkceVerifierCookie, ""))
		http.SetCookie(w, s.transientCookie(oauthStateCookie, ""))
		http.SetCookie(w, s.transientCookie(returnToCookie, ""))

		http.Redirect(w, r, returnTo, http.StatusFound)
	}
}

// LogoutHandler clears the token cookies and, when a provider domain is
// configured, bounces through its federated logout endpoint.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token.ClearTokens(w, s.secureCookies())
		s.bus.PublishAuthChanged(false)

		if s.config.CognitoDomain != "" && s.config.LogoutRedirectURI != "" {
			logoutURL := s.config.CognitoDomain + "/logout?" + url.Values{
				"client_id":  {s.config.CognitoClientID},
				"logout_uri": {s.config.LogoutRedirectURI},
			}.Encode()
			http.Redirect(w, r, logoutURL, http.StatusFound)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// safeReturnPath accepts only same-site absolute paths, so the redirect flow
// cannot be used to bounce users to another origin.
func safeReturnPath(raw string) string {
	if raw == "" || raw[0] != '/' {
		return ""
	}
	if len(raw) > 1 && raw[1] == '/' {
		return ""
	}
	return raw
}

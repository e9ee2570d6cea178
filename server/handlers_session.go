package server

import (
	"net/http"

	"github.com/jrsteele09/go-passwordless/token"
)

type sessionResponse struct {
	SignedIn bool       `json:"signedIn"`
	Role     token.Role `json:"role"`
	Username string     `json:"username,omitempty"`
}

// SessionHandler reports whether the caller holds a valid token and which
// role it grants. Verification failures read as signed out, never as errors.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.verifier == nil {
			writeJSON(w, http.StatusOK, sessionResponse{Role: token.RoleAnonymous})
			return
		}

		user := s.verifier.VerifyRequest(r.Context(), r)
		if user == nil {
			writeJSON(w, http.StatusOK, sessionResponse{Role: token.RoleAnonymous})
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			SignedIn: true,
			Role:     user.Role,
			Username: user.Username,
		})
	}
}

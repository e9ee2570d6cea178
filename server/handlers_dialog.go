package server

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-passwordless/dialog"
	"github.com/jrsteele09/go-passwordless/token"
)

type emailRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type methodRequest struct {
	Method string `json:"method"`
}

type profileRequest struct {
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// dialogOp runs one machine operation for the request's tab and replies with
// the resulting dialog state. Tokens issued during the operation become
// cookies on this response.
func (s *Server) dialogOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tab *Tab) error) {
	tab, err := s.machines.Get(w, r)
	if err != nil {
		log.Error().Err(err).Msg("failed to create dialog machine")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := op(r.Context(), tab); err != nil {
		if errors.Is(err, dialog.ErrBusy) {
			writeJSONError(w, http.StatusConflict, "another operation is in progress")
			return
		}
		log.Error().Err(err).Str("path", r.URL.Path).Msg("dialog operation failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if tokens := tab.Tokens.Take(); tokens != nil {
		token.WriteTokens(w, *tokens, s.secureCookies())
	}
	writeJSON(w, http.StatusOK, tab.Machine.State())
}

// DialogStateHandler reads the dialog state, restoring it from the snapshot
// first. ?visible=1 forces a re-restore after the page regained visibility.
func (s *Server) DialogStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tab, err := s.machines.Get(w, r)
		if err != nil {
			log.Error().Err(err).Msg("failed to create dialog machine")
			writeJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		force := r.URL.Query().Get("visible") == "1"
		if err := tab.Machine.Restore(r.Context(), force); err != nil && !errors.Is(err, dialog.ErrBusy) {
			log.Warn().Err(err).Msg("dialog restore failed")
		}
		writeJSON(w, http.StatusOK, tab.Machine.State())
	}
}

func (s *Server) DialogOpenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			return tab.Machine.Open(ctx)
		})
	}
}

func (s *Server) DialogCloseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			return tab.Machine.Close(ctx)
		})
	}
}

func (s *Server) DialogEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			tab.Machine.SetEmail(req.Email)
			if req.Phone != "" {
				tab.Machine.SetPhone(req.Phone)
			}
			return tab.Machine.SubmitEmail(ctx)
		})
	}
}

// DialogCodeHandler records typed code digits without submitting them.
func (s *Server) DialogCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			tab.Machine.SetCode(ctx, req.Code)
			return nil
		})
	}
}

func (s *Server) DialogConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			if req.Code != "" {
				tab.Machine.SetCode(ctx, req.Code)
			}
			return tab.Machine.ConfirmCode(ctx)
		})
	}
}

func (s *Server) DialogResendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			return tab.Machine.Resend(ctx)
		})
	}
}

func (s *Server) DialogMethodHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req methodRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			return tab.Machine.SwitchMethod(ctx, req.Method)
		})
	}
}

func (s *Server) DialogProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			tab.Machine.SetProfile(req.Phone, req.Location)
			return tab.Machine.SubmitProfile(ctx)
		})
	}
}

func (s *Server) DialogProfileSkipHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dialogOp(w, r, func(ctx context.Context, tab *Tab) error {
			return tab.Machine.SkipProfile(ctx)
		})
	}
}

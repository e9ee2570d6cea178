// Package server exposes the passwordless dialog, session check and
// hosted-UI redirect flow over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-passwordless/bridge"
	"github.com/jrsteele09/go-passwordless/dialog"
	"github.com/jrsteele09/go-passwordless/dialog/staterepo"
	"github.com/jrsteele09/go-passwordless/events"
	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/jrsteele09/go-passwordless/token"
)

// RequestVerifier checks request credentials. nil result means anonymous.
type RequestVerifier interface {
	VerifyRequest(ctx context.Context, r *http.Request) *token.VerifiedUser
}

type Server struct {
	config   *config.Config
	router   chi.Router
	machines *MachineRegistry
	verifier RequestVerifier
	bus      *events.Bus
	oauth    *oauth2.Config
}

// New wires the HTTP surface. verifier may be nil when token verification is
// not configured; the session endpoint then reports every caller anonymous.
func New(cfg *config.Config, service *passwordless.Service, repo staterepo.Repo, bus *events.Bus, verifier RequestVerifier) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if service == nil {
		return nil, errors.New("[server.New] service is required")
	}
	if repo == nil {
		return nil, errors.New("[server.New] repo is required")
	}
	if bus == nil {
		return nil, errors.New("[server.New] bus is required")
	}

	s := &Server{
		config:   cfg,
		verifier: verifier,
		bus:      bus,
	}

	methods := dialog.ResolveMethods(cfg.AuthMethods)
	s.machines = NewMachineRegistry(func(key string, sink *TokenSink) (*dialog.Machine, error) {
		machine, err := dialog.NewMachine(service, repo, bus, key,
			dialog.WithMethods(methods),
			dialog.WithFallbackOTPLength(cfg.FallbackOTPLength()),
			dialog.WithDefaultCountryCode(cfg.DefaultCountryCode),
			dialog.WithOnTokens(sink.Put),
		)
		if err != nil {
			return nil, err
		}
		// The newest dialog owns the process-wide controller slot.
		bridge.Register(machine)
		return machine, nil
	})

	if cfg.HostedUIConfigured() {
		s.oauth = &oauth2.Config{
			ClientID:    cfg.CognitoClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      splitScopes(cfg.CognitoScopes),
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.CognitoDomain + "/oauth2/authorize",
				TokenURL: cfg.CognitoDomain + "/oauth2/token",
			},
		}
	}

	s.router = chi.NewRouter()
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoverMiddleware)
	s.initRoutes()

	return s, nil
}

func (s *Server) initRoutes() {
	s.router.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware())

		r.Get(RouteSession, s.SessionHandler())
		r.Get(RouteEvents, s.EventsHandler())

		r.Get(RouteLogin, s.LoginHandler())
		r.Get(RouteCallback, s.CallbackHandler())
		r.Get(RouteLogout, s.LogoutHandler())

		r.Get(RouteDialogState, s.DialogStateHandler())
		r.Post(RouteDialogOpen, s.DialogOpenHandler())
		r.Post(RouteDialogClose, s.DialogCloseHandler())
		r.Post(RouteDialogEmail, s.DialogEmailHandler())
		r.Post(RouteDialogCode, s.DialogCodeHandler())
		r.Post(RouteDialogConfirm, s.DialogConfirmHandler())
		r.Post(RouteDialogResend, s.DialogResendHandler())
		r.Post(RouteDialogMethod, s.DialogMethodHandler())
		r.Post(RouteDialogProfile, s.DialogProfileHandler())
		r.Post(RouteDialogProfileSkip, s.DialogProfileSkipHandler())
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// secureCookies reports whether token cookies carry the Secure attribute.
func (s *Server) secureCookies() bool {
	return !s.config.IsDevelopment()
}

func splitScopes(raw string) []string {
	return strings.Fields(raw)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-passwordless/dialog/staterepo"
	"github.com/jrsteele09/go-passwordless/events"
	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/jrsteele09/go-passwordless/passwordless/cognito"
	"github.com/jrsteele09/go-passwordless/server"
	"github.com/jrsteele09/go-passwordless/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	configureLogging(cfg)
	displayAppname(cfg.AppName)

	ctx := context.Background()

	provider, err := cognito.New(ctx, cfg.CognitoRegion, cfg.CognitoClientID)
	if err != nil {
		return fmt.Errorf("cognito.New: %w", err)
	}
	service, err := passwordless.NewService(provider,
		passwordless.WithTimezoneAttribute(cfg.TimezoneAttribute, cfg.TimezoneValue),
		passwordless.WithDefaultCountryCode(cfg.DefaultCountryCode),
	)
	if err != nil {
		return fmt.Errorf("passwordless.NewService: %w", err)
	}

	repo, err := newStateRepo(cfg)
	if err != nil {
		return fmt.Errorf("newStateRepo: %w", err)
	}

	verifier, err := token.NewVerifier(ctx, cfg.CognitoRegion, cfg.CognitoUserPoolID, cfg.CognitoClientID)
	if err != nil {
		return fmt.Errorf("token.NewVerifier: %w", err)
	}

	bus := events.NewBus()
	defer bus.Close()

	srv, err := server.New(cfg, service, repo, bus, verifier)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// newStateRepo picks the dialog snapshot store: Redis when configured, else
// process memory.
func newStateRepo(cfg *config.Config) (staterepo.Repo, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("using in-memory dialog state store")
		return staterepo.NewInMemoryRepo(cfg.SnapshotTTL), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("using redis dialog state store")
	return staterepo.NewRedisRepo(redis.NewClient(opts), cfg.SnapshotTTL), nil
}

func configureLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// Package config maps environment variables onto a typed, read-only
// configuration struct.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config holds all runtime configuration for the auth service.
type Config struct {
	// Server settings
	Port    string `env:"PORT"     envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"Passwordless Auth Service"`
	Env     string `env:"ENV"      envDefault:"development"`

	// Identity provider (Cognito user pool)
	CognitoRegion     string `env:"COGNITO_REGION"              envDefault:"us-east-1"`
	CognitoUserPoolID string `env:"COGNITO_USER_POOL_ID,required,notEmpty"`
	CognitoClientID   string `env:"COGNITO_USER_POOL_CLIENT_ID,required,notEmpty"`

	// Hosted-UI endpoints (optional; passwordless works without them)
	CognitoDomain     string `env:"COGNITO_DOMAIN"`
	CognitoScopes     string `env:"COGNITO_SCOPES" envDefault:"openid email profile"`
	RedirectURI       string `env:"COGNITO_REDIRECT_URI"`
	LogoutRedirectURI string `env:"COGNITO_LOGOUT_REDIRECT_URI"`

	// Dialog behavior
	AuthMethods        string `env:"AUTH_METHODS"`
	DefaultOTPLength   int    `env:"COGNITO_DEFAULT_OTP_LENGTH" envDefault:"0"`
	OTPLength          int    `env:"COGNITO_OTP_LENGTH"         envDefault:"0"`
	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE"       envDefault:"1"`
	TimezoneAttribute  string `env:"SIGNUP_TIMEZONE_ATTRIBUTE"  envDefault:"zoneinfo"`
	TimezoneValue      string `env:"SIGNUP_TIMEZONE_VALUE"      envDefault:"UTC"`

	// Dialog snapshot store
	RedisURL    string        `env:"REDIS_URL"`
	SnapshotTTL time.Duration `env:"DIALOG_SNAPSHOT_TTL" envDefault:"30m"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] Parse")
	}
	return cfg, nil
}

// ListenAddr returns the port as a listen address.
func (c *Config) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// FallbackOTPLength resolves the configured code-length fallback, first
// non-zero candidate wins.
func (c *Config) FallbackOTPLength() int {
	if c.DefaultOTPLength > 0 {
		return c.DefaultOTPLength
	}
	return c.OTPLength
}

// HostedUIConfigured reports whether the redirect-based login endpoints can
// be served.
func (c *Config) HostedUIConfigured() bool {
	return c.CognitoDomain != "" && c.CognitoClientID != ""
}

// IsDevelopment reports whether the server runs in development mode.
// Development mode drops the Secure attribute from cookies so localhost
// works.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

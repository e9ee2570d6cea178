package config_test

import (
	"testing"

	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COGNITO_USER_POOL_ID", "us-east-1_pool")
	t.Setenv("COGNITO_USER_POOL_CLIENT_ID", "client-1")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr())
	require.Equal(t, "us-east-1", cfg.CognitoRegion)
	require.True(t, cfg.IsDevelopment())
	require.False(t, cfg.HostedUIConfigured())
	require.Zero(t, cfg.FallbackOTPLength())
}

func TestLoadRequiresPoolAndClient(t *testing.T) {
	t.Setenv("COGNITO_USER_POOL_ID", "")
	t.Setenv("COGNITO_USER_POOL_CLIENT_ID", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestFallbackOTPLengthPrecedence(t *testing.T) {
	t.Setenv("COGNITO_USER_POOL_ID", "us-east-1_pool")
	t.Setenv("COGNITO_USER_POOL_CLIENT_ID", "client-1")
	t.Setenv("COGNITO_DEFAULT_OTP_LENGTH", "6")
	t.Setenv("COGNITO_OTP_LENGTH", "4")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 6, cfg.FallbackOTPLength(), "COGNITO_DEFAULT_OTP_LENGTH wins")

	t.Setenv("COGNITO_DEFAULT_OTP_LENGTH", "0")
	cfg, err = config.Load()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.FallbackOTPLength())
}

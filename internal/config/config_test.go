package config

import (
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// TestLoadFromEnv tests loading configuration from the test environment file
func TestLoadFromEnv(t *testing.T) {
	env, err := godotenv.Read("../../.env.test")
	require.NoError(t, err, "Failed to read .env.test file")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := &Config{}
	err = cfg.LoadFromEnv()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.API.Port)
	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, "postgres", cfg.Database.User)
	require.Equal(t, "inkwell_test", cfg.Database.DBName)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, "test_secret_key", cfg.Auth.JWTSecret)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	require.Equal(t, 5*time.Minute, cfg.Auth.TwoFactorTTL)
	require.True(t, cfg.Auth.RegistrationOpen)
	require.Equal(t, "memory", cfg.RateLimit.Backend)
	require.False(t, cfg.Pwned.Enabled)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg := &Config{}
	require.NoError(t, cfg.LoadFromEnv())

	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenDuration)
	require.Equal(t, 24*time.Hour, cfg.Auth.VerificationTTL)
	require.Equal(t, time.Hour, cfg.Auth.ResetTTL)
	require.Equal(t, RateLimitRule{Requests: 5, Window: time.Minute}, cfg.RateLimit.Actions["login"])
	require.Equal(t, "https://api.pwnedpasswords.com", cfg.Pwned.BaseURL)
	require.False(t, cfg.OAuth.GitHub.Enabled())
	require.Equal(t, 5*time.Second, cfg.API.ShutdownTimeout)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "Missing JWT Secret",
			env:  map[string]string{"JWT_SECRET": ""},
			want: "JWT_SECRET is required",
		},
		{
			name: "Unknown Database Driver",
			env:  map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "sqlite"},
			want: "unsupported DB_DRIVER",
		},
		{
			name: "Unknown Rate Limit Backend",
			env:  map[string]string{"JWT_SECRET": "s", "RATE_LIMIT_BACKEND": "etcd"},
			want: "unsupported RATE_LIMIT_BACKEND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := (&Config{}).LoadFromEnv()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvAsRule(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  RateLimitRule
	}{
		{name: "Unset", value: "", want: RateLimitRule{Requests: 3, Window: time.Hour}},
		{name: "Valid", value: "10/30s", want: RateLimitRule{Requests: 10, Window: 30 * time.Second}},
		{name: "Missing Separator", value: "10", want: RateLimitRule{Requests: 3, Window: time.Hour}},
		{name: "Bad Count", value: "x/1m", want: RateLimitRule{Requests: 3, Window: time.Hour}},
		{name: "Bad Duration", value: "4/soon", want: RateLimitRule{Requests: 3, Window: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_RULE", tt.value)
			require.Equal(t, tt.want, getEnvAsRule("TEST_RULE", 3, time.Hour))
		})
	}
}

func TestOAuthProviderConfig_Enabled(t *testing.T) {
	require.True(t, OAuthProviderConfig{ClientID: "id", ClientSecret: "secret"}.Enabled())
	require.False(t, OAuthProviderConfig{ClientID: "id"}.Enabled())
}

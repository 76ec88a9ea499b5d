package db

import (
	"inkwell/internal/config"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

// ProjectRoot returns the absolute path of the module root
func ProjectRoot(t *testing.T) string {
	t.Helper()

	// Get the absolute path to this file
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	// Calculate project root (3 levels up from this file)
	projectRoot, err := filepath.Abs(filepath.Join(filepath.Dir(filename), "..", "..", ".."))
	require.NoError(t, err, "Failed to get absolute project root path")
	return projectRoot
}

// LoadTestConfig reads .env.test into the test environment and loads a config from it
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	projectRoot := ProjectRoot(t)

	env, err := godotenv.Read(filepath.Join(projectRoot, ".env.test"))
	require.NoError(t, err, "Failed to read .env.test file")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := &config.Config{}
	err = cfg.LoadFromEnv()
	require.NoError(t, err, "Failed to load config")

	// Only override migrations path to ensure it's absolute
	cfg.Database.MigrationsPath = filepath.Join(projectRoot, "migrations")

	return cfg
}

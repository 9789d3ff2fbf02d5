package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripiotrade/pkg/core"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(New())
	require.NoError(t, err)

	d := core.DefaultConfig()
	assert.Equal(t, d.BaseURL, c.BaseURL)
	assert.Equal(t, d.APIPrefix, c.APIPrefix)
	assert.Equal(t, d.WSURL, c.WSURL)
	assert.Equal(t, d.Timeout, c.Timeout)
	assert.Equal(t, 0, c.MaxRetries)
	assert.Nil(t, c.Credentials)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RIPIO_API_KEY", "env-key")
	t.Setenv("RIPIO_API_SECRET", "env-secret")
	t.Setenv("RIPIO_BASE_URL", "https://sandbox.example.com")
	t.Setenv("RIPIO_TIMEOUT", "3s")
	t.Setenv("RIPIO_MAX_RETRIES", "2")
	t.Setenv("RIPIO_MAX_CLOCK_SKEW", "5s")
	t.Setenv("RIPIO_LOG_LEVEL", "DEBUG")

	c, err := Load(New())
	require.NoError(t, err)

	require.NotNil(t, c.Credentials)
	assert.Equal(t, "env-key", c.Credentials.APIKey)
	assert.Equal(t, "env-secret", c.Credentials.APISecret)
	assert.Equal(t, "https://sandbox.example.com", c.BaseURL)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.Equal(t, 2, c.MaxRetries)
	assert.Equal(t, 5*time.Second, c.MaxClockSkew)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_PartialCredentialsAreKept(t *testing.T) {
	t.Setenv("RIPIO_API_KEY", "only-key")

	c, err := Load(New())
	require.NoError(t, err)
	require.NotNil(t, c.Credentials)

	var credErr *core.MissingCredentialsError
	require.ErrorAs(t, c.Credentials.Validate(), &credErr)
	assert.Equal(t, []string{"api secret"}, credErr.Missing)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ripio.yaml")
	content := "api_key: file-key\napi_secret: file-secret\nrate_limit_enabled: true\nrate_limit_requests: 30\nrate_limit_period: 1m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := New()
	require.NoError(t, ReadFile(v, path))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "file-key", c.Credentials.APIKey)
	assert.True(t, c.RateLimitEnabled)
	assert.Equal(t, 30, c.RateLimitRequests)
	assert.Equal(t, time.Minute, c.RateLimitPeriod)
}

func TestReadFile_EnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ripio.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"api_key":"file-key","api_secret":"file-secret"}`), 0o600))
	t.Setenv("RIPIO_API_KEY", "env-key")

	v := New()
	require.NoError(t, ReadFile(v, path))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.Credentials.APIKey)
	assert.Equal(t, "file-secret", c.Credentials.APISecret)
}

func TestReadFile_Errors(t *testing.T) {
	v := New()

	assert.NoError(t, ReadFile(v, ""))

	err := ReadFile(v, "ripio.ini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file type")

	err = ReadFile(v, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad base url", map[string]string{"RIPIO_BASE_URL": "not a url"}},
		{"bad log level", map[string]string{"RIPIO_LOG_LEVEL": "loud"}},
		{"rate limit without period", map[string]string{"RIPIO_RATE_LIMIT_ENABLED": "true", "RIPIO_RATE_LIMIT_PERIOD": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, val := range tt.env {
				t.Setenv(k, val)
			}
			_, err := Load(New())
			assert.Error(t, err)
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, Level(&core.Config{LogLevel: "debug"}))
	assert.Equal(t, zerolog.WarnLevel, Level(&core.Config{LogLevel: "warn"}))
	assert.Equal(t, zerolog.InfoLevel, Level(&core.Config{}))
	assert.Equal(t, zerolog.InfoLevel, Level(&core.Config{LogLevel: "nope"}))
}

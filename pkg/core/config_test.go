package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProductionURL, config.BaseURL)
	assert.Equal(t, "/v4", config.APIPrefix)
	assert.Equal(t, ProductionWSURL, config.WSURL)
	assert.Equal(t, 10*time.Second, config.Timeout)
	assert.Equal(t, 0, config.MaxRetries)
	assert.False(t, config.RateLimitEnabled)
	assert.False(t, config.CircuitBreakerEnabled)
	assert.Zero(t, config.MaxClockSkew)
	assert.Equal(t, "info", config.LogLevel)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid_config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing_base_url",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "prefix_without_slash",
			mutate:  func(c *Config) { c.APIPrefix = "v4" },
			wantErr: true,
			errMsg:  "APIPrefix",
		},
		{
			name:   "empty_prefix_allowed",
			mutate: func(c *Config) { c.APIPrefix = "" },
		},
		{
			name:    "invalid_timeout",
			mutate:  func(c *Config) { c.Timeout = -1 * time.Second },
			wantErr: true,
			errMsg:  "Timeout",
		},
		{
			name:    "negative_max_retries",
			mutate:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: true,
			errMsg:  "MaxRetries",
		},
		{
			name:    "negative_clock_skew",
			mutate:  func(c *Config) { c.MaxClockSkew = -time.Second },
			wantErr: true,
			errMsg:  "MaxClockSkew",
		},
		{
			name:    "invalid_log_level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
			errMsg:  "LogLevel",
		},
		{
			name: "rate_limit_enabled_without_requests",
			mutate: func(c *Config) {
				c.RateLimitEnabled = true
				c.RateLimitRequests = 0
			},
			wantErr: true,
			errMsg:  "RateLimitRequests",
		},
		{
			name: "circuit_breaker_enabled_without_threshold",
			mutate: func(c *Config) {
				c.CircuitBreakerEnabled = true
				c.CircuitBreakerFailThreshold = 0
			},
			wantErr: true,
			errMsg:  "CircuitBreakerFailThreshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.errMsg), "error %q should mention %s", err, tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_Chaining(t *testing.T) {
	creds := &Credentials{APIKey: "key", APISecret: "secret"}

	config := DefaultConfig().
		WithCredentials(creds).
		WithBaseURL("http://localhost:8080").
		WithWSURL("ws://localhost:8081").
		WithTimeout(5*time.Second).
		WithRateLimit(10, time.Second).
		WithMaxClockSkew(2 * time.Second)

	assert.Same(t, creds, config.Credentials)
	assert.Equal(t, "http://localhost:8080", config.BaseURL)
	assert.Equal(t, "ws://localhost:8081", config.WSURL)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.True(t, config.RateLimitEnabled)
	assert.Equal(t, 10, config.RateLimitRequests)
	assert.Equal(t, 2*time.Second, config.MaxClockSkew)
	assert.NoError(t, config.Validate())
}

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		creds   *Credentials
		missing []string
	}{
		{"nil", nil, []string{"api key", "api secret"}},
		{"empty", &Credentials{}, []string{"api key", "api secret"}},
		{"missing_secret", &Credentials{APIKey: "AK1"}, []string{"api secret"}},
		{"missing_key", &Credentials{APISecret: "s3cr3t"}, []string{"api key"}},
		{"blank_key", &Credentials{APIKey: "  ", APISecret: "s3cr3t"}, []string{"api key"}},
		{"complete", &Credentials{APIKey: "AK1", APISecret: "s3cr3t"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}

			var credErr *MissingCredentialsError
			require.True(t, errors.As(err, &credErr))
			assert.Equal(t, tt.missing, credErr.Missing)
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestCredentials_StringMasksKey(t *testing.T) {
	creds := Credentials{APIKey: "ABCDEFGHIJKLMNOP", APISecret: "topsecret"}

	s := creds.String()

	assert.Equal(t, "Credentials{APIKey:ABCD****MNOP}", s)
	assert.NotContains(t, s, "topsecret")
	assert.Equal(t, "Credentials{APIKey:****}", Credentials{APIKey: "short"}.String())
}

// Package config loads a client configuration from an optional file and
// RIPIO_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"ripiotrade/pkg/core"
)

const EnvPrefix = "RIPIO"

// Keys are the names used in config files. The environment variable of a key
// is EnvPrefix_KEY, e.g. RIPIO_API_KEY.
const (
	KeyAPIKey       = "api_key"
	KeyAPISecret    = "api_secret"
	KeyBaseURL      = "base_url"
	KeyAPIPrefix    = "api_prefix"
	KeyWSURL        = "ws_url"
	KeyTimeout      = "timeout"
	KeyMaxRetries   = "max_retries"
	KeyRetryWaitMin = "retry_wait_min"
	KeyRetryWaitMax = "retry_wait_max"
	KeyRateLimit    = "rate_limit_enabled"
	KeyRateRequests = "rate_limit_requests"
	KeyRatePeriod   = "rate_limit_period"
	KeyBreaker      = "circuit_breaker_enabled"
	KeyMaxClockSkew = "max_clock_skew"
	KeyLogLevel     = "log_level"
)

var supportedExts = map[string]bool{".yml": true, ".yaml": true, ".json": true, ".toml": true}

// New returns a viper instance with the defaults of core.DefaultConfig and
// environment lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := core.DefaultConfig()
	v.SetDefault(KeyBaseURL, d.BaseURL)
	v.SetDefault(KeyAPIPrefix, d.APIPrefix)
	v.SetDefault(KeyWSURL, d.WSURL)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyMaxRetries, d.MaxRetries)
	v.SetDefault(KeyRetryWaitMin, d.RetryWaitMin)
	v.SetDefault(KeyRetryWaitMax, d.RetryWaitMax)
	v.SetDefault(KeyRateLimit, d.RateLimitEnabled)
	v.SetDefault(KeyRateRequests, d.RateLimitRequests)
	v.SetDefault(KeyRatePeriod, d.RateLimitPeriod)
	v.SetDefault(KeyBreaker, d.CircuitBreakerEnabled)
	v.SetDefault(KeyMaxClockSkew, d.MaxClockSkew)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	return v
}

// ReadFile merges a config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if ext := filepath.Ext(path); !supportedExts[ext] {
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load builds and validates a core.Config from v. Incomplete credentials are
// kept so signed calls can report which half is missing.
func Load(v *viper.Viper) (*core.Config, error) {
	c := core.DefaultConfig()

	c.BaseURL = v.GetString(KeyBaseURL)
	c.APIPrefix = v.GetString(KeyAPIPrefix)
	c.WSURL = v.GetString(KeyWSURL)
	c.Timeout = v.GetDuration(KeyTimeout)
	c.MaxRetries = v.GetInt(KeyMaxRetries)
	c.RetryWaitMin = v.GetDuration(KeyRetryWaitMin)
	c.RetryWaitMax = v.GetDuration(KeyRetryWaitMax)
	c.RateLimitEnabled = v.GetBool(KeyRateLimit)
	c.RateLimitRequests = v.GetInt(KeyRateRequests)
	c.RateLimitPeriod = v.GetDuration(KeyRatePeriod)
	c.CircuitBreakerEnabled = v.GetBool(KeyBreaker)
	c.MaxClockSkew = v.GetDuration(KeyMaxClockSkew)
	c.LogLevel = strings.ToLower(v.GetString(KeyLogLevel))

	key, secret := v.GetString(KeyAPIKey), v.GetString(KeyAPISecret)
	if key != "" || secret != "" {
		c.Credentials = &core.Credentials{APIKey: key, APISecret: secret}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Level maps the configured log level to a zerolog level.
func Level(c *core.Config) zerolog.Level {
	if c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

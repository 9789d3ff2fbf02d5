package core

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// ProductionURL is the Ripio Trade REST host.
	ProductionURL = "https://api.ripiotrade.co"
	// ProductionWSURL is the Ripio Trade websocket endpoint.
	ProductionWSURL = "wss://ws.ripiotrade.co"
	// DefaultAPIPrefix is the version prefix that is part of every signed path.
	DefaultAPIPrefix = "/v4"
)

// Credentials holds API authentication credentials for the exchange.
// A Credentials value is read-only once handed to a signer.
type Credentials struct {
	// APIKey is the public API key identifier, sent in the Authorization header.
	APIKey string `json:"api_key" mapstructure:"api_key"`
	// APISecret is the private key used as the HMAC key. It is never transmitted.
	APISecret string `json:"api_secret" mapstructure:"api_secret"`
}

// Validate reports a *MissingCredentialsError when the key or the secret is blank.
func (c *Credentials) Validate() error {
	if c == nil {
		return &MissingCredentialsError{Missing: []string{"api key", "api secret"}}
	}
	var missing []string
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api key")
	}
	if strings.TrimSpace(c.APISecret) == "" {
		missing = append(missing, "api secret")
	}
	if len(missing) > 0 {
		return &MissingCredentialsError{Missing: missing}
	}
	return nil
}

// String masks the key so credentials can be logged safely.
func (c Credentials) String() string {
	return "Credentials{APIKey:" + maskKey(c.APIKey) + "}"
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Config contains all configuration options for a Ripio Trade client.
type Config struct {
	BaseURL     string       `json:"base_url" mapstructure:"base_url" validate:"required,url"`
	APIPrefix   string       `json:"api_prefix" mapstructure:"api_prefix" validate:"omitempty,startswith=/"`
	WSURL       string       `json:"ws_url" mapstructure:"ws_url" validate:"required,url"`
	Credentials *Credentials `json:"credentials,omitempty" mapstructure:"credentials"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" validate:"min=1ms"`
	// MaxRetries is zero by default. Every retry is signed again with a fresh timestamp.
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries" validate:"min=0"`
	RetryWaitMin time.Duration `json:"retry_wait_min" mapstructure:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" mapstructure:"retry_wait_max" validate:"min=0"`

	RateLimitEnabled  bool          `json:"rate_limit_enabled" mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `json:"rate_limit_requests" mapstructure:"rate_limit_requests" validate:"min=0"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" mapstructure:"rate_limit_period" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled" mapstructure:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" mapstructure:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" mapstructure:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" mapstructure:"circuit_breaker_timeout"`

	// MaxClockSkew is the drift between the server Date header and the local
	// clock above which a warning is logged. Zero disables the check.
	MaxClockSkew time.Duration `json:"max_clock_skew" mapstructure:"max_clock_skew" validate:"min=0"`

	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

// DefaultConfig returns a Config pointing at the production endpoints.
// Defaults: 10s timeout, no retries, rate limiting and circuit breaker disabled.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      ProductionURL,
		APIPrefix:    DefaultAPIPrefix,
		WSURL:        ProductionWSURL,
		Timeout:      10 * time.Second,
		MaxRetries:   0,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		RateLimitEnabled:  false,
		RateLimitRequests: 60,
		RateLimitPeriod:   time.Minute,

		CircuitBreakerEnabled:          false,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks struct constraints and the cross-field rules of the optional
// rate limiter and circuit breaker. Credentials are validated at signing time.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RateLimitEnabled {
		if c.RateLimitRequests <= 0 {
			return errors.New("RateLimitRequests must be positive when enabled")
		}
		if c.RateLimitPeriod <= 0 {
			return errors.New("RateLimitPeriod must be positive when enabled")
		}
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL overrides the REST host and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithWSURL overrides the websocket endpoint and returns the config for chaining.
func (c *Config) WithWSURL(url string) *Config {
	c.WSURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit enables client-side rate limiting and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitEnabled = true
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithMaxClockSkew sets the clock skew warning threshold and returns the config for chaining.
func (c *Config) WithMaxClockSkew(skew time.Duration) *Config {
	c.MaxClockSkew = skew
	return c
}

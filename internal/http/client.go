// Package http sends signed and public REST calls to the exchange.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"ripiotrade/internal/circuitbreaker"
	"ripiotrade/internal/ratelimit"
	"ripiotrade/pkg/core"
	"ripiotrade/pkg/signer"
)

type Config struct {
	BaseURL      string            `validate:"required,url"`
	Timeout      time.Duration     `validate:"min=1ms"`
	MaxRetries   int               `validate:"min=0"`
	RetryWaitMin time.Duration     `validate:"min=0"`
	RetryWaitMax time.Duration     `validate:"min=0"`
	MaxClockSkew time.Duration     `validate:"min=0"`
	Headers      map[string]string `validate:"omitempty"`
}

// Client dispatches core.Request values. Signed calls get a fresh signature on
// every attempt, and the body that was signed is the body that is sent.
type Client struct {
	client  *resty.Client
	config  Config
	signer  *signer.Signer
	credErr error
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	logger  zerolog.Logger
	sleep   func(context.Context, time.Duration) error

	mu     sync.RWMutex
	closed bool
}

type Option func(*Client)

// WithCredentials enables signed calls. Invalid credentials do not fail
// construction. The error is returned by every signed call instead, before any
// network I/O, so public calls keep working.
func WithCredentials(creds *core.Credentials, opts ...signer.Option) Option {
	return func(c *Client) {
		s, err := signer.New(creds, append([]signer.Option{signer.WithLogger(c.logger)}, opts...)...)
		if err != nil {
			c.signer = nil
			c.credErr = err
			return
		}
		c.signer = s
		c.credErr = nil
	}
}

// WithSigner uses an existing signer for signed calls.
func WithSigner(s *signer.Signer) Option {
	return func(c *Client) {
		c.signer = s
		c.credErr = nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func WithCircuitBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	// Retries are driven by Do so that each attempt is signed again.
	client.SetRetryCount(0)
	// Cancelling an order sends its id as a DELETE body.
	client.SetAllowMethodDeletePayload(true)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client:  client,
		config:  *config,
		logger:  zerolog.Nop(),
		credErr: &core.MissingCredentialsError{Missing: []string{"api key", "api secret"}},
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	logger := c.logger
	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})
	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Signer returns the signer used for authenticated calls, or an error when
// credentials are missing.
func (c *Client) Signer() (*signer.Signer, error) {
	if c.signer == nil {
		return nil, c.credErr
	}
	return c.signer, nil
}

// Do sends req and returns the raw body of a 2xx response. Signed requests
// fail with *core.MissingCredentialsError before any network call when no
// credentials were configured. A non-2xx response is returned as
// *core.APIError carrying the body as received, and transport failures as
// *core.ConnectionError.
func (c *Client) Do(ctx context.Context, req *core.Request) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	if req.RequireAuth && c.signer == nil {
		return nil, c.credErr
	}

	// Serialized once; every attempt sends these bytes.
	body, err := signer.Serialize(req.Body)
	if err != nil {
		return nil, err
	}
	uri := req.RequestURI()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.logger.Warn().
				Err(lastErr).
				Str("method", req.Method).
				Str("path", uri).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("retrying request")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, lastErr
			}
		}

		data, err := c.attempt(ctx, req, uri, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

// DoPublic sends req without authentication headers.
func (c *Client) DoPublic(ctx context.Context, req *core.Request) ([]byte, error) {
	public := *req
	public.RequireAuth = false
	return c.Do(ctx, &public)
}

func (c *Client) attempt(ctx context.Context, req *core.Request, uri string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitN(ctx, req.Bucket, req.Weight); err != nil {
			return nil, err
		}
	}

	if c.breaker == nil {
		return c.send(ctx, req, uri, body)
	}

	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.send(ctx, req, uri, body)
		return err
	}, retryable)
	return data, err
}

func (c *Client) send(ctx context.Context, req *core.Request, uri string, body []byte) ([]byte, error) {
	r := c.client.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}

	if req.RequireAuth {
		signed, err := c.signer.Sign(req.Method, uri, body)
		if err != nil {
			return nil, err
		}
		r.SetHeaders(signed.Headers())
	} else {
		r.SetHeader(signer.HeaderContentType, "application/json")
	}
	if body != nil {
		r.SetBody(body)
	}

	resp, err := r.Execute(req.Method, uri)
	if err != nil {
		return nil, &core.ConnectionError{URL: c.config.BaseURL + uri, Err: err}
	}

	c.checkClockSkew(resp.Header().Get("Date"))

	data := resp.Bytes()
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		apiErr := core.NewAPIError(req.Method, uri, status, data)
		apiErr.Code, apiErr.Message = parseErrorBody(data)
		c.logger.Debug().
			Str("method", req.Method).
			Str("path", uri).
			Int("status", status).
			Str("code", apiErr.Code).
			Msg("api error")
		return nil, apiErr
	}
	return data, nil
}

// parseErrorBody extracts an error code and message when the body is JSON.
func parseErrorBody(body []byte) (code, message string) {
	if !gjson.ValidBytes(body) {
		return "", ""
	}
	res := gjson.GetManyBytes(body, "code", "error_code", "message", "error", "detail", "errors.0.message")
	if res[0].Exists() {
		code = res[0].String()
	} else {
		code = res[1].String()
	}
	for _, m := range res[2:] {
		if m.Type == gjson.String && m.Str != "" {
			message = m.Str
			break
		}
	}
	return code, message
}

func (c *Client) checkClockSkew(date string) {
	if c.config.MaxClockSkew <= 0 || date == "" {
		return
	}
	serverTime, err := nethttp.ParseTime(date)
	if err != nil {
		return
	}
	skew := time.Since(serverTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > c.config.MaxClockSkew {
		c.logger.Warn().
			Dur("skew", skew).
			Dur("max_skew", c.config.MaxClockSkew).
			Time("server_time", serverTime).
			Msg("local clock drifts from exchange clock")
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	wait := c.config.RetryWaitMin << uint(attempt-1)
	if c.config.RetryWaitMax > 0 && (wait > c.config.RetryWaitMax || wait <= 0) {
		wait = c.config.RetryWaitMax
	}
	return wait
}

// retryable reports whether err may succeed on another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return core.IsConnectionError(err) || core.IsServerError(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

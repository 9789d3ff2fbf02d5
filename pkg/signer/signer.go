// Package signer builds the authentication headers of Ripio Trade REST calls.
//
// A request is signed over the message
//
//	timestamp + METHOD + path + body
//
// with HMAC-SHA256 keyed by the API secret, and the digest is sent Base64
// encoded. The timestamp is taken at signing time for every request.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"ripiotrade/pkg/core"
)

// Header names expected by the exchange.
const (
	HeaderAPIKey      = "Authorization"
	HeaderTimestamp   = "timestamp"
	HeaderSignature   = "signature"
	HeaderContentType = "Content-Type"

	contentTypeJSON = "application/json"
)

// codec serializes payloads. Map keys are sorted so equal payloads always
// produce equal bytes.
var codec = sonic.ConfigStd

// Clock returns the current time. It is injectable for tests.
type Clock func() time.Time

// SignedRequest is the result of signing one request. It is valid for a
// single dispatch.
type SignedRequest struct {
	Method    string
	Path      string
	Timestamp int64
	// Body is the serialized payload, nil when there is none. These are the
	// exact bytes that were signed and must be the exact bytes sent.
	Body      []byte
	Signature string
	APIKey    string
}

// Headers returns the authentication headers of the request.
func (r *SignedRequest) Headers() map[string]string {
	return map[string]string{
		HeaderAPIKey:      r.APIKey,
		HeaderTimestamp:   strconv.FormatInt(r.Timestamp, 10),
		HeaderSignature:   r.Signature,
		HeaderContentType: contentTypeJSON,
	}
}

// Signer signs requests with a fixed set of credentials. It holds no mutable
// state and is safe for concurrent use.
type Signer struct {
	creds  core.Credentials
	clock  Clock
	logger zerolog.Logger
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock replaces time.Now as the timestamp source.
func WithClock(clock Clock) Option {
	return func(s *Signer) {
		s.clock = clock
	}
}

// WithLogger sets the logger used for debug output. Secrets are never logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Signer) {
		s.logger = logger
	}
}

// New creates a Signer. It fails with *core.MissingCredentialsError when the
// key or secret is empty.
func New(creds *core.Credentials, opts ...Option) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	s := &Signer{
		creds:  *creds,
		clock:  time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// APIKey returns the public key the signer authenticates with.
func (s *Signer) APIKey() string {
	return s.creds.APIKey
}

// Sign serializes payload (nil means no body) and signs the request with a
// fresh timestamp.
func (s *Signer) Sign(method, path string, payload any) (*SignedRequest, error) {
	if err := s.creds.Validate(); err != nil {
		return nil, err
	}

	body, err := Serialize(payload)
	if err != nil {
		return nil, err
	}

	return s.signAt(s.clock().UnixMilli(), method, path, body), nil
}

// SignAt signs with an explicit timestamp in milliseconds. The body is used as
// is. Callers are responsible for timestamp freshness.
func (s *Signer) SignAt(timestamp int64, method, path string, body []byte) *SignedRequest {
	return s.signAt(timestamp, method, path, body)
}

func (s *Signer) signAt(timestamp int64, method, path string, body []byte) *SignedRequest {
	method = strings.ToUpper(method)
	message := Message(timestamp, method, path, body)
	signature := Signature(s.creds.APISecret, message)

	s.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int64("timestamp", timestamp).
		Int("body_size", len(body)).
		Msg("signed request")

	return &SignedRequest{
		Method:    method,
		Path:      path,
		Timestamp: timestamp,
		Body:      body,
		Signature: signature,
		APIKey:    s.creds.APIKey,
	}
}

// Serialize encodes a payload as compact JSON with sorted map keys. A nil
// payload yields a nil body and a []byte payload is taken as already encoded.
func Serialize(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	}
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, &core.SerializationError{Err: err}
	}
	return data, nil
}

// Message builds the signing message. The method is upper-cased and the parts
// are concatenated without separators.
func Message(timestamp int64, method, path string, body []byte) string {
	var b strings.Builder
	b.Grow(13 + len(method) + len(path) + len(body))
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(strings.ToUpper(method))
	b.WriteString(path)
	b.Write(body)
	return b.String()
}

// Signature returns Base64(HMAC-SHA256(secret, message)).
func Signature(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the message under secret, in
// constant time.
func Verify(secret, message, signature string) bool {
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hmac.Equal(mac.Sum(nil), expected)
}

package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripiotrade/pkg/core"
)

const testTimestamp int64 = 1700000000000

func fixedClock(ms int64) Clock {
	return func() time.Time { return time.UnixMilli(ms) }
}

func newTestSigner(t *testing.T, secret string) *Signer {
	t.Helper()
	s, err := New(&core.Credentials{APIKey: "AK1", APISecret: secret}, WithClock(fixedClock(testTimestamp)))
	require.NoError(t, err)
	return s
}

func independentSignature(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type failingPayload struct{}

func (failingPayload) MarshalJSON() ([]byte, error) {
	return nil, errors.New("cannot encode")
}

func TestSign_BalancesVector(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")

	req, err := s.Sign("GET", "/user/balances/", nil)
	require.NoError(t, err)

	message := Message(req.Timestamp, req.Method, req.Path, req.Body)
	assert.Equal(t, "1700000000000GET/user/balances/", message)
	assert.Equal(t, independentSignature("s3cr3t", "1700000000000GET/user/balances/"), req.Signature)
	assert.Equal(t, "TOKcCHipzKJWeisikv1ur1yW9ZFLyJZNREviyQ57x6c=", req.Signature)
	assert.Nil(t, req.Body)

	headers := req.Headers()
	assert.Equal(t, "AK1", headers[HeaderAPIKey])
	assert.Equal(t, "1700000000000", headers[HeaderTimestamp])
	assert.Equal(t, req.Signature, headers[HeaderSignature])
	assert.Equal(t, "application/json", headers[HeaderContentType])
}

func TestSignature_KnownVector(t *testing.T) {
	assert.Equal(t,
		"97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg=",
		Signature("key", "The quick brown fox jumps over the lazy dog"))
}

func TestSign_Deterministic(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")
	payload := map[string]any{"pair": "USDC_ARS", "side": "buy", "amount": "10", "price": "1200"}

	first, err := s.Sign("POST", "/v4/orders", payload)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := s.Sign("POST", "/v4/orders", payload)
		require.NoError(t, err)
		assert.Equal(t, first.Signature, again.Signature)
		assert.Equal(t, first.Body, again.Body)
	}
}

func TestSign_MethodIsUpperCased(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")

	lower, err := s.Sign("get", "/user/balances/", nil)
	require.NoError(t, err)
	upper, err := s.Sign("GET", "/user/balances/", nil)
	require.NoError(t, err)

	assert.Equal(t, "GET", lower.Method)
	assert.Equal(t, upper.Signature, lower.Signature)
}

func TestSign_EachFieldChangesSignature(t *testing.T) {
	base := newTestSigner(t, "s3cr3t")
	payload := map[string]any{"id": "order-1"}

	ref, err := base.Sign("DELETE", "/v4/orders", payload)
	require.NoError(t, err)

	otherSecret := newTestSigner(t, "other")
	later, err := New(&core.Credentials{APIKey: "AK1", APISecret: "s3cr3t"}, WithClock(fixedClock(testTimestamp+1)))
	require.NoError(t, err)

	tests := []struct {
		name string
		sign func() (*SignedRequest, error)
	}{
		{"method", func() (*SignedRequest, error) { return base.Sign("POST", "/v4/orders", payload) }},
		{"path", func() (*SignedRequest, error) { return base.Sign("DELETE", "/v4/orders/", payload) }},
		{"payload", func() (*SignedRequest, error) {
			return base.Sign("DELETE", "/v4/orders", map[string]any{"id": "order-2"})
		}},
		{"no_payload", func() (*SignedRequest, error) { return base.Sign("DELETE", "/v4/orders", nil) }},
		{"secret", func() (*SignedRequest, error) { return otherSecret.Sign("DELETE", "/v4/orders", payload) }},
		{"timestamp", func() (*SignedRequest, error) { return later.Sign("DELETE", "/v4/orders", payload) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.sign()
			require.NoError(t, err)
			assert.NotEqual(t, ref.Signature, req.Signature)
		})
	}
}

func TestSign_BodyIsSignedBytes(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")
	payload := map[string]any{"price": "1200", "amount": "10", "pair": "USDC_ARS", "post_only": true}

	req, err := s.Sign("POST", "/v4/orders", payload)
	require.NoError(t, err)

	assert.Equal(t, `{"amount":"10","pair":"USDC_ARS","post_only":true,"price":"1200"}`, string(req.Body))
	message := "1700000000000POST/v4/orders" + string(req.Body)
	assert.Equal(t, independentSignature("s3cr3t", message), req.Signature)
	assert.True(t, Verify("s3cr3t", message, req.Signature))
}

func TestSign_RawBodyIsNotReencoded(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")
	raw := []byte(`{"z":1,"a":2}`)

	req, err := s.Sign("POST", "/v4/orders", raw)
	require.NoError(t, err)

	assert.Equal(t, raw, req.Body)
}

func TestSign_FreshTimestampPerCall(t *testing.T) {
	ticks := []int64{testTimestamp, testTimestamp + 250}
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ms := ticks[0]
		ticks = ticks[1:]
		return time.UnixMilli(ms)
	}

	s, err := New(&core.Credentials{APIKey: "AK1", APISecret: "s3cr3t"}, WithClock(clock))
	require.NoError(t, err)

	first, err := s.Sign("GET", "/user/balances/", nil)
	require.NoError(t, err)
	second, err := s.Sign("GET", "/user/balances/", nil)
	require.NoError(t, err)

	assert.Equal(t, testTimestamp, first.Timestamp)
	assert.Equal(t, testTimestamp+250, second.Timestamp)
	assert.NotEqual(t, first.Signature, second.Signature)
}

func TestSign_DefaultClockIsNow(t *testing.T) {
	s, err := New(&core.Credentials{APIKey: "AK1", APISecret: "s3cr3t"})
	require.NoError(t, err)

	before := time.Now().UnixMilli()
	req, err := s.Sign("GET", "/ticket", nil)
	require.NoError(t, err)
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, req.Timestamp, before)
	assert.LessOrEqual(t, req.Timestamp, after)
}

func TestSign_SerializationError(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")

	req, err := s.Sign("POST", "/v4/orders", failingPayload{})

	assert.Nil(t, req)
	var serErr *core.SerializationError
	require.ErrorAs(t, err, &serErr)
	assert.True(t, core.IsTerminalError(err))
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds *core.Credentials
	}{
		{"nil", nil},
		{"empty_key", &core.Credentials{APISecret: "s3cr3t"}},
		{"empty_secret", &core.Credentials{APIKey: "AK1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.creds)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, core.ErrMissingCredentials)
		})
	}
}

func TestSign_ZeroValueSignerFailsFast(t *testing.T) {
	var s Signer

	req, err := s.Sign("GET", "/user/balances/", nil)

	assert.Nil(t, req)
	var credErr *core.MissingCredentialsError
	assert.ErrorAs(t, err, &credErr)
}

func TestSign_ConcurrentUse(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")
	want := independentSignature("s3cr3t", "1700000000000GET/user/balances/")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := s.Sign("GET", "/user/balances/", nil)
			assert.NoError(t, err)
			assert.Equal(t, want, req.Signature)
		}()
	}
	wg.Wait()
}

func TestSignAt(t *testing.T) {
	s := newTestSigner(t, "s3cr3t")

	req := s.SignAt(testTimestamp, "post", "/v4/ticket", nil)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, independentSignature("s3cr3t", "1700000000000POST/v4/ticket"), req.Signature)
	assert.Equal(t, "AK1", s.APIKey())
}

func TestVerify_RejectsGarbage(t *testing.T) {
	assert.False(t, Verify("s3cr3t", "msg", "not base64!"))
	assert.False(t, Verify("s3cr3t", "msg", Signature("other", "msg")))
	assert.True(t, Verify("s3cr3t", "msg", Signature("s3cr3t", "msg")))
}

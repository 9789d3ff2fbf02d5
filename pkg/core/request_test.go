package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest("get", "/v4/orders")

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/v4/orders", req.Path)
	assert.NotNil(t, req.Query)
	assert.NotNil(t, req.Headers)
	assert.Equal(t, 1, req.Weight)
	assert.False(t, req.RequireAuth)
}

func TestRequest_SetQuery(t *testing.T) {
	req := NewRequest("GET", "/v4/orders")
	result := req.SetQuery("pair", "BTC_USDC").SetQuery("status", "").SetQuery("limit", nil)

	assert.Equal(t, req, result)
	assert.Equal(t, Params{"pair": "BTC_USDC"}, req.Query)
}

func TestRequest_Setters(t *testing.T) {
	body := map[string]string{"id": "abc"}
	req := NewRequest("DELETE", "/v4/orders").
		SetBody(body).
		SetHeader("X-Custom", "value").
		SetWeight(3).
		SetBucket("orders").
		SetRequireAuth(true)

	assert.Equal(t, body, req.Body)
	assert.Equal(t, "value", req.Headers["X-Custom"])
	assert.Equal(t, 3, req.Weight)
	assert.Equal(t, "orders", req.Bucket)
	assert.True(t, req.RequireAuth)
}

func TestRequest_RequestURI(t *testing.T) {
	tests := []struct {
		name  string
		query Params
		want  string
	}{
		{"no_query", nil, "/v4/book/orders/level-2"},
		{"single", Params{"pair": "BTC_USDC"}, "/v4/book/orders/level-2?pair=BTC_USDC"},
		{"sorted", Params{"pair": "BTC_USDC", "limit": 10, "aggregation": 0.5}, "/v4/book/orders/level-2?aggregation=0.5&limit=10&pair=BTC_USDC"},
		{"escaped", Params{"from_date": "2024-01-01T00:00:00+03:00"}, "/v4/book/orders/level-2?from_date=2024-01-01T00%3A00%3A00%2B03%3A00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("GET", "/v4/book/orders/level-2").SetQueryParams(tt.query)
			assert.Equal(t, tt.want, req.RequestURI())
		})
	}
}

func TestFormatParam(t *testing.T) {
	assert.Equal(t, "x", FormatParam("x"))
	assert.Equal(t, "10", FormatParam(10))
	assert.Equal(t, "1700000000000", FormatParam(int64(1700000000000)))
	assert.Equal(t, "0.25", FormatParam(0.25))
	assert.Equal(t, "true", FormatParam(true))
	assert.Equal(t, "buy", FormatParam(SideBuy))
}

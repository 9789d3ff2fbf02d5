package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowN_Burst(t *testing.T) {
	limiter := New(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.AllowN("", 1), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.AllowN("", 1), "request 6 should be blocked")

	stats := limiter.Stats()
	assert.Equal(t, int64(5), stats.Tokens)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestLimiter_AllowN_Weight(t *testing.T) {
	limiter := New(10, time.Minute)

	assert.True(t, limiter.AllowN("", 6))
	assert.False(t, limiter.AllowN("", 6))
	assert.True(t, limiter.AllowN("", 4))
}

func TestLimiter_WeightBelowOneCountsAsOne(t *testing.T) {
	limiter := New(2, time.Minute)

	assert.True(t, limiter.AllowN("", 0))
	assert.True(t, limiter.AllowN("", -3))
	assert.False(t, limiter.AllowN("", 0))
}

func TestLimiter_Buckets(t *testing.T) {
	limiter := New(100, time.Minute)
	limiter.SetBucketLimit("orders", 2, time.Minute)

	assert.True(t, limiter.AllowN("orders", 1))
	assert.True(t, limiter.AllowN("orders", 1))
	assert.False(t, limiter.AllowN("orders", 1), "orders bucket should be exhausted")

	assert.True(t, limiter.AllowN("withdrawals", 1), "other buckets are independent")
	assert.True(t, limiter.AllowN("", 1))
}

func TestLimiter_WaitN(t *testing.T) {
	limiter := New(5, 100*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.WaitN(context.Background(), "orders", 1))
	}
	assert.Equal(t, int64(5), limiter.Stats().Waits)
}

func TestLimiter_WaitN_ContextCancellation(t *testing.T) {
	limiter := New(1, time.Minute)
	require.NoError(t, limiter.WaitN(context.Background(), "", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.WaitN(ctx, "", 1)
	assert.Error(t, err)
	assert.Equal(t, int64(1), limiter.Stats().Rejected)
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(100, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.AllowN("", 1) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed, 100)
}

func TestLimiter_SetLimit(t *testing.T) {
	limiter := New(1, time.Minute)

	assert.True(t, limiter.AllowN("", 1))
	assert.False(t, limiter.AllowN("", 1))

	limiter.SetLimit(1000, time.Second)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, limiter.AllowN("", 1), "should allow after limit increase and time passage")
}

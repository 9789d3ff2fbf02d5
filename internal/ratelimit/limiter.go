// Package ratelimit throttles outgoing REST calls on the client side.
//
// The exchange remains the authority on limits. This limiter only spaces calls
// so a busy caller does not trip server-side throttling.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket with a global budget and optional named buckets.
// A request consumes its weight from the global budget and, when it names a
// bucket, from that bucket as well.
type Limiter struct {
	global  *rate.Limiter
	buckets sync.Map

	mu       sync.RWMutex
	requests int
	period   time.Duration

	waited   atomic.Int64
	rejected atomic.Int64
	tokens   atomic.Int64
}

// New creates a Limiter that allows requests tokens per period, with bursts of
// up to requests tokens.
func New(requests int, period time.Duration) *Limiter {
	return &Limiter{
		global:   rate.NewLimiter(perSecond(requests, period), requests),
		requests: requests,
		period:   period,
	}
}

func perSecond(requests int, period time.Duration) rate.Limit {
	return rate.Limit(float64(requests) / period.Seconds())
}

// WaitN blocks until weight tokens are available in the global budget and in
// bucket, if one is named. A weight below one counts as one.
func (l *Limiter) WaitN(ctx context.Context, bucket string, weight int) error {
	if weight < 1 {
		weight = 1
	}
	l.waited.Add(1)

	if err := l.global.WaitN(ctx, weight); err != nil {
		l.rejected.Add(1)
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if bucket != "" {
		if err := l.bucket(bucket).WaitN(ctx, weight); err != nil {
			l.rejected.Add(1)
			return fmt.Errorf("rate limit wait %s: %w", bucket, err)
		}
	}
	l.tokens.Add(int64(weight))
	return nil
}

// AllowN reports whether weight tokens can be taken right now without waiting.
func (l *Limiter) AllowN(bucket string, weight int) bool {
	if weight < 1 {
		weight = 1
	}
	now := time.Now()
	if !l.global.AllowN(now, weight) {
		l.rejected.Add(1)
		return false
	}
	if bucket != "" && !l.bucket(bucket).AllowN(now, weight) {
		l.rejected.Add(1)
		return false
	}
	l.tokens.Add(int64(weight))
	return true
}

func (l *Limiter) bucket(name string) *rate.Limiter {
	if v, ok := l.buckets.Load(name); ok {
		return v.(*rate.Limiter)
	}
	l.mu.RLock()
	limiter := rate.NewLimiter(perSecond(l.requests, l.period), l.requests)
	l.mu.RUnlock()
	actual, _ := l.buckets.LoadOrStore(name, limiter)
	return actual.(*rate.Limiter)
}

// SetBucketLimit overrides the budget of one bucket. Buckets default to the
// global budget.
func (l *Limiter) SetBucketLimit(name string, requests int, period time.Duration) {
	limiter := l.bucket(name)
	limiter.SetLimit(perSecond(requests, period))
	limiter.SetBurst(requests)
}

// SetLimit replaces the global budget. Buckets created afterwards inherit it.
func (l *Limiter) SetLimit(requests int, period time.Duration) {
	l.mu.Lock()
	l.requests = requests
	l.period = period
	l.mu.Unlock()
	l.global.SetLimit(perSecond(requests, period))
	l.global.SetBurst(requests)
}

// Stats is a point-in-time view of limiter usage.
type Stats struct {
	Waits    int64
	Rejected int64
	Tokens   int64
}

// Stats returns usage counters.
func (l *Limiter) Stats() Stats {
	return Stats{
		Waits:    l.waited.Load(),
		Rejected: l.rejected.Load(),
		Tokens:   l.tokens.Load(),
	}
}

// Package circuitbreaker stops calling the exchange after repeated transport or
// server failures and probes it again after a cool-down.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"ripiotrade/pkg/core"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Config struct {
	FailThreshold    int           `json:"fail_threshold" validate:"min=1"`
	SuccessThreshold int           `json:"success_threshold" validate:"min=1"`
	Timeout          time.Duration `json:"timeout" validate:"min=1ms"`
}

// Breaker counts consecutive failures. It opens at FailThreshold, lets calls
// through again after Timeout in half-open state, and closes after
// SuccessThreshold consecutive successes.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	failThreshold    int
	successThreshold int
	timeout          time.Duration
	now              func() time.Time
	onChange         func(from, to State)
	transitions      int
}

func New(config Config) *Breaker {
	return &Breaker{
		failThreshold:    config.FailThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		now:              time.Now,
	}
}

// OnStateChange registers a callback run on every transition. It is called
// with the breaker lock held and must not call back into the breaker.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow reports whether a call may proceed. An open breaker whose cool-down
// has elapsed moves to half-open and allows the call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked()
	return b.state != StateOpen
}

// Record feeds the outcome of a call into the breaker.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expireLocked()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failThreshold {
			b.openLocked()
		}
	case StateHalfOpen:
		if !success {
			b.openLocked()
			return
		}
		b.successes++
		if b.successes >= b.successThreshold {
			b.failures = 0
			b.successes = 0
			b.transitionLocked(StateClosed)
		}
	}
}

// Execute runs fn when the breaker allows it and records the result. classify
// decides which errors count as failures; nil counts every error.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error, classify func(error) bool) error {
	if !b.Allow() {
		return core.ErrCircuitBreakerOpen
	}
	err := fn(ctx)
	failed := err != nil
	if failed && classify != nil {
		failed = classify(err)
	}
	if failed && errors.Is(err, context.Canceled) {
		// caller gave up, the exchange did not fail
		return err
	}
	b.Record(!failed)
	return err
}

func (b *Breaker) expireLocked() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		b.successes = 0
		b.transitionLocked(StateHalfOpen)
	}
}

func (b *Breaker) openLocked() {
	b.openedAt = b.now()
	b.successes = 0
	b.transitionLocked(StateOpen)
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.transitions++
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.transitionLocked(StateClosed)
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) Successes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.successes
}

// Transitions returns how many state changes happened so far.
func (b *Breaker) Transitions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transitions
}

// Package breaker implements the per-dependency circuit breaker guarding
// collector calls, plus the registry that owns one breaker per dependency.
package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// State is the breaker position. Closed passes calls through, Open
// rejects them, HalfOpen probes the dependency with live traffic.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes one breaker. Zero values fall back to the defaults.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Timeout          time.Duration // open cooldown before probing
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// OpenError rejects a call without invoking the operation. RetryIn is the
// remaining cooldown.
type OpenError struct {
	Name    string
	RetryIn time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is open: retry in %.0fs", e.Name, e.RetryIn.Seconds())
}

// Status is a point-in-time snapshot safe to serialize.
type Status struct {
	Name               string     `json:"name"`
	State              string     `json:"state"`
	FailureCount       int        `json:"failure_count"`
	SuccessCount       int        `json:"success_count"`
	LastFailure        *time.Time `json:"last_failure,omitempty"`
	TimeInStateSeconds float64    `json:"time_in_state_seconds"`
	SecondsUntilRetry  float64    `json:"seconds_until_retry,omitempty"`
}

// Breaker is a closed/open/half-open state machine. All methods are safe
// for concurrent use.
type Breaker struct {
	name string
	cfg  Config

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailure     time.Time
	lastStateChange time.Time

	onStateChange func(name string, from, to State)
}

func New(name string, cfg Config) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults(), state: StateClosed, lastStateChange: time.Now()}
}

// Call runs op unless the breaker is open and still cooling down, in
// which case it returns an *OpenError without invoking op. The op's
// error feeds the state machine and is returned unchanged.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := op(ctx)
	b.observe(err)
	return err
}

// admit gates the call. An open breaker whose cooldown elapsed moves to
// half-open and admits the call as a probe.
func (b *Breaker) admit() error {
	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}
	remaining := b.cfg.Timeout - time.Since(b.lastFailure)
	if remaining > 0 {
		b.mu.Unlock()
		return &OpenError{Name: b.name, RetryIn: remaining}
	}
	from, changed := b.setState(StateHalfOpen)
	b.mu.Unlock()
	if changed {
		b.announce(from, StateHalfOpen)
	}
	return nil
}

func (b *Breaker) observe(err error) {
	var from, to State
	changed := false

	b.mu.Lock()
	if err != nil {
		b.failureCount++
		b.lastFailure = time.Now()
		// A single failure while probing reopens immediately.
		if b.state == StateHalfOpen || b.failureCount >= b.cfg.FailureThreshold {
			from, changed = b.setState(StateOpen)
			to = StateOpen
		}
	} else {
		switch b.state {
		case StateHalfOpen:
			b.successCount++
			if b.successCount >= b.cfg.SuccessThreshold {
				from, changed = b.setState(StateClosed)
				to = StateClosed
			}
		case StateClosed:
			b.failureCount = 0
		}
	}
	b.mu.Unlock()

	if changed {
		b.announce(from, to)
	}
}

// setState must be called with the lock held. Leaving half-open always
// clears the probe counter; closing also clears the failure counter.
func (b *Breaker) setState(to State) (State, bool) {
	from := b.state
	if from == to {
		return from, false
	}
	b.state = to
	b.lastStateChange = time.Now()
	b.successCount = 0
	if to == StateClosed {
		b.failureCount = 0
	}
	return from, true
}

// announce runs outside the lock so a slow listener cannot stall calls.
func (b *Breaker) announce(from, to State) {
	if to == StateOpen {
		slog.Warn("circuit breaker opened", "breaker", b.name, "from", from.String())
	} else {
		slog.Info("circuit breaker state change", "breaker", b.name, "from", from.String(), "to", to.String())
	}
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status snapshots the breaker for the status endpoint.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Name:               b.name,
		State:              b.state.String(),
		FailureCount:       b.failureCount,
		SuccessCount:       b.successCount,
		TimeInStateSeconds: math.Round(time.Since(b.lastStateChange).Seconds()*10) / 10,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure.UTC()
		s.LastFailure = &t
	}
	if b.state == StateOpen {
		if remaining := b.cfg.Timeout - time.Since(b.lastFailure); remaining > 0 {
			s.SecondsUntilRetry = math.Round(remaining.Seconds()*10) / 10
		}
	}
	return s
}

// Reset forces the breaker closed and zeroes its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from, changed := b.setState(StateClosed)
	b.failureCount = 0
	b.successCount = 0
	b.lastFailure = time.Time{}
	b.mu.Unlock()

	if changed {
		b.announce(from, StateClosed)
	}
}

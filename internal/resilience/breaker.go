// Package resilience keeps narration capture working when an upstream
// transcription service misbehaves.
//
// A [Breaker] is a three-state circuit breaker (closed, open, half-open) that
// stops calls to a service after repeated failures. A [Failover] orders
// several services, each behind its own breaker, and routes every call to the
// first one that is healthy. [Transcribers] applies that to [stt.Provider].
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker rejects
// calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// has passed since the last failure.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. One failed
	// probe opens the breaker again; enough successful probes close it.
	StateHalfOpen
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take their defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes that closes the breaker.
	// Default: 3.
	HalfOpenMax int

	// OnStateChange, when set, is called after every transition. It runs
	// with the breaker unlocked.
	OnStateChange func(name string, from, to State)

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Breaker implements the circuit breaker pattern.
//
// Errors caused by the caller's own context being cancelled or timing out are
// not held against the service.
type Breaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	halfOpenMax   int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	probes      int
	probeWins   int
	transitions []transition
}

type transition struct{ from, to State }

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		resetTimeout:  cfg.ResetTimeout,
		halfOpenMax:   cfg.HalfOpenMax,
		onStateChange: cfg.OnStateChange,
		now:           cfg.Clock,
	}
	if b.maxFailures <= 0 {
		b.maxFailures = 5
	}
	if b.resetTimeout <= 0 {
		b.resetTimeout = 30 * time.Second
	}
	if b.halfOpenMax <= 0 {
		b.halfOpenMax = 3
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.name }

// Execute calls fn unless the breaker rejects it, in which case it returns
// [ErrCircuitOpen] without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(probe, err)
	return err
}

// admit decides whether a call may proceed and reports whether it is a probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.flush()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, ErrCircuitOpen
		}
		b.moveTo(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.probes >= b.halfOpenMax {
			return false, ErrCircuitOpen
		}
		b.probes++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.flush()
	defer b.mu.Unlock()

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if probe {
			b.probes--
		}
		return
	}

	switch {
	case err != nil && probe:
		b.open()
	case err != nil:
		b.failures++
		if b.failures >= b.maxFailures && b.state == StateClosed {
			b.open()
		}
	case probe:
		b.probeWins++
		if b.probeWins >= b.halfOpenMax && b.state == StateHalfOpen {
			b.moveTo(StateClosed)
		}
	default:
		b.failures = 0
	}
}

// open trips the breaker. Must be called with b.mu held.
func (b *Breaker) open() {
	b.openedAt = b.now()
	b.moveTo(StateOpen)
}

// moveTo switches state and resets the counters of the new state. Must be
// called with b.mu held; the transition is reported by flush.
func (b *Breaker) moveTo(to State) {
	if b.state == to {
		return
	}
	b.transitions = append(b.transitions, transition{from: b.state, to: to})
	b.state = to
	b.failures = 0
	b.probes = 0
	b.probeWins = 0
}

// flush logs and reports pending transitions. Must be called without b.mu.
func (b *Breaker) flush() {
	b.mu.Lock()
	pending := b.transitions
	b.transitions = nil
	b.mu.Unlock()

	for _, t := range pending {
		level := slog.LevelInfo
		if t.to == StateOpen {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "circuit breaker state changed",
			"name", b.name, "from", t.from.String(), "to", t.to.String())
		if b.onStateChange != nil {
			b.onStateChange(b.name, t.from, t.to)
		}
	}
}

// State returns the current state. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the switch itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.moveTo(StateClosed)
	b.failures = 0
	b.mu.Unlock()
	b.flush()
}

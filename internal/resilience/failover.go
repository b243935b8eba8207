package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry of a [Failover] could serve a call.
var ErrAllFailed = errors.New("resilience: all providers failed")

type entry[T any] struct {
	value   T
	breaker *Breaker
}

// Failover routes calls to the first healthy of several interchangeable
// values, in the order they were added. Each value sits behind its own
// [Breaker] built from the shared [BreakerConfig].
//
// Add all entries before the first call; Failover is safe for concurrent
// calls once built.
type Failover[T any] struct {
	cfg     BreakerConfig
	entries []entry[T]
}

// NewFailover returns a Failover whose first entry is primary.
func NewFailover[T any](name string, primary T, cfg BreakerConfig) *Failover[T] {
	f := &Failover[T]{cfg: cfg}
	f.Add(name, primary)
	return f
}

// Add appends a fallback.
func (f *Failover[T]) Add(name string, v T) {
	cfg := f.cfg
	cfg.Name = name
	f.entries = append(f.entries, entry[T]{value: v, breaker: NewBreaker(cfg)})
}

// States reports the breaker state of every entry, in order.
func (f *Failover[T]) States() map[string]State {
	out := make(map[string]State, len(f.entries))
	for _, e := range f.entries {
		out[e.breaker.Name()] = e.breaker.State()
	}
	return out
}

// Available reports whether at least one entry would accept a call.
func (f *Failover[T]) Available() bool {
	for _, e := range f.entries {
		if e.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Do calls fn with each entry in turn until one succeeds. Entries with an
// open breaker are skipped. It stops early when ctx is done.
func (f *Failover[T]) Do(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := Call(ctx, f, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// Call is the result-returning form of [Failover.Do].
func Call[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, e := range f.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := e.breaker.Execute(func() error {
			var err error
			out, err = fn(ctx, e.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider with open circuit", "provider", e.breaker.Name())
		} else {
			slog.Warn("provider failed, trying next", "provider", e.breaker.Name(), "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.breaker.Name(), err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

var errNoTranscriber = errors.New("resilience: every transcriber circuit is open")

// Transcribers is an [stt.Provider] that opens sessions on the first healthy
// of several transcription services.
type Transcribers struct {
	failover *Failover[stt.Provider]
}

var _ stt.Provider = (*Transcribers)(nil)

// NewTranscribers returns Transcribers preferring primary.
func NewTranscribers(name string, primary stt.Provider, cfg BreakerConfig) *Transcribers {
	return &Transcribers{failover: NewFailover(name, primary, cfg)}
}

// Add registers a fallback service.
func (t *Transcribers) Add(name string, p stt.Provider) {
	t.failover.Add(name, p)
}

// StartStream opens a session on the first service that accepts it.
// Failures after the session has started are not retried elsewhere.
func (t *Transcribers) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Call(ctx, t.failover, func(ctx context.Context, p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// States reports the breaker state of every service.
func (t *Transcribers) States() map[string]State {
	return t.failover.States()
}

// Check fails when no service would accept a new session. It fits
// health.Checker.
func (t *Transcribers) Check(context.Context) error {
	if !t.failover.Available() {
		return errNoTranscriber
	}
	return nil
}

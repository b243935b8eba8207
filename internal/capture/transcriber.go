package capture

import (
	"fmt"

	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/resilience"
	"github.com/MrWong99/sitescope/pkg/provider/stt/deepgram"
)

// NewTranscriber builds the configured transcription services into one
// provider that fails over between them in order. It returns nil when no
// service is configured.
func NewTranscriber(cfg config.TranscriberConfig) (*resilience.Transcribers, error) {
	bc := resilience.BreakerConfig{
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
		HalfOpenMax:  cfg.Breaker.HalfOpenMax,
	}

	var t *resilience.Transcribers
	for i, svc := range cfg.Services {
		if svc.Name != config.ServiceDeepgram {
			return nil, fmt.Errorf("capture: transcriber %d: unknown service %q", i, svc.Name)
		}
		p, err := deepgram.New(svc.ResolvedAPIKey(),
			deepgram.WithModel(svc.Model),
			deepgram.WithEndpoint(svc.Endpoint),
			deepgram.WithLanguage(cfg.Language),
			deepgram.WithSampleRate(cfg.SampleRate),
		)
		if err != nil {
			return nil, fmt.Errorf("capture: transcriber %d: %w", i, err)
		}
		name := fmt.Sprintf("%s[%d]", svc.Name, i)
		if t == nil {
			t = resilience.NewTranscribers(name, p, bc)
			continue
		}
		t.Add(name, p)
	}
	return t, nil
}

// Package capture turns a transcription session into one narration
// transcript ready for analysis.
//
// A site walk-through arrives from the Transcriber as a sequence of final
// utterances. [Drain] collects them from an open [stt.SessionHandle];
// [Record] also streams the recorder's audio into a new session first.
// Both reduce the utterances to a single [stt.Transcript] with [Merge].
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// Defaults for [StreamConfig].
const (
	DefaultSampleRate = 16000
	DefaultChunkSize  = 3200
)

// ErrNoSpeech is returned when a session ends without any final utterance.
var ErrNoSpeech = errors.New("capture: no speech recognised")

// Option configures [Drain] and [Record].
type Option func(*options)

type options struct {
	onPartial func(stt.Transcript)
	chunkSize int
}

// WithPartialHandler receives interim transcripts, for live display. It is
// called from the draining goroutine and must not block.
func WithPartialHandler(fn func(stt.Transcript)) Option {
	return func(o *options) { o.onPartial = fn }
}

// WithChunkSize sets the number of audio bytes per SendAudio call in
// [Record]. Non-positive values are ignored. Default: [DefaultChunkSize].
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StreamConfig derives session settings from the transcriber section of the
// configuration: mono audio at the configured rate, the recognition language
// and the trade vocabulary keyword boosts.
func StreamConfig(cfg config.TranscriberConfig) stt.StreamConfig {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return stt.StreamConfig{
		SampleRate: rate,
		Channels:   1,
		Language:   cfg.Language,
		Keywords:   cfg.Keywords,
	}
}

// Drain reads finals from h until the session ends and merges them. Partials
// are consumed concurrently so a slow reader never stalls the service.
//
// If ctx is done first, Drain closes h and returns the context error.
func Drain(ctx context.Context, h stt.SessionHandle, opts ...Option) (stt.Transcript, error) {
	o := buildOptions(opts)

	partialsDone := make(chan struct{})
	go func() {
		defer close(partialsDone)
		for p := range h.Partials() {
			if o.onPartial != nil {
				o.onPartial(p)
			}
		}
	}()

	var finals []stt.Transcript
	finalsCh := h.Finals()
	for {
		select {
		case <-ctx.Done():
			_ = h.Close()
			return stt.Transcript{}, ctx.Err()
		case f, ok := <-finalsCh:
			if !ok {
				<-partialsDone
				return finish(ctx, finals)
			}
			finals = append(finals, f)
		}
	}
}

func finish(ctx context.Context, finals []stt.Transcript) (stt.Transcript, error) {
	t := Merge(finals)
	if strings.TrimSpace(t.Text) == "" {
		return stt.Transcript{}, ErrNoSpeech
	}
	observe.Logger(ctx).Debug("transcript drained",
		"utterances", len(finals),
		"confidence", t.Confidence,
		"duration", t.Duration,
	)
	return t, nil
}

// Record opens a session on p, streams audio into it until EOF, ends the
// session and returns the merged transcript.
func Record(ctx context.Context, p stt.Provider, cfg stt.StreamConfig, audio io.Reader, opts ...Option) (stt.Transcript, error) {
	ctx, span := observe.StartSpan(ctx, "capture.record")
	defer span.End()

	h, err := p.StartStream(ctx, cfg)
	if err != nil {
		observe.RecordError(ctx, err)
		return stt.Transcript{}, fmt.Errorf("capture: start stream: %w", err)
	}

	o := buildOptions(opts)
	type drained struct {
		t   stt.Transcript
		err error
	}
	result := make(chan drained, 1)
	go func() {
		t, err := Drain(ctx, h, opts...)
		result <- drained{t, err}
	}()

	if err := send(ctx, h, audio, o.chunkSize); err != nil {
		_ = h.Close()
		<-result
		observe.RecordError(ctx, err)
		return stt.Transcript{}, err
	}
	if err := h.Close(); err != nil {
		observe.Logger(ctx).Warn("closing transcription session", "err", err)
	}

	r := <-result
	observe.RecordError(ctx, r.err)
	return r.t, r.err
}

func send(ctx context.Context, h stt.SessionHandle, audio io.Reader, size int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Sessions may keep the chunk, so every read gets its own buffer.
		buf := make([]byte, size)
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := h.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("capture: send audio: %w", sendErr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("capture: read audio: %w", err)
		}
	}
}

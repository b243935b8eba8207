// Package stt defines the Transcriber boundary of sitescope: the contract an
// upstream speech-to-text service fulfils to turn a contractor's spoken site
// walk-through into narration text.
//
// Speech recognition itself happens outside this module. A recorder pushes
// raw audio into a [SessionHandle]; the service answers with interim
// partials and authoritative finals. Only finals feed the analysis pipeline
// (see internal/capture).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by optional session operations the backing
// service does not implement.
var ErrNotSupported = errors.New("stt: operation not supported")

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (e.g. 16000).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en-US").
	// Empty lets the service auto-detect.
	Language string

	// Keywords boosts recognition of trade vocabulary such as "soffit" or
	// "wainscoting".
	Keywords []KeywordBoost
}

// SessionHandle is an open transcription session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw audio. Calling SendAudio after Close
	// returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. They are never analysed.
	// The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits authoritative transcripts in utterance order.
	// The channel is closed when the session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the keyword boost list mid-session. Services that
	// cannot do this return ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Close ends the session. After Close returns, Partials and Finals are
	// closed. Calling Close more than once is safe.
	Close() error
}

// Provider opens transcription sessions.
type Provider interface {
	// StartStream opens a new session with the given configuration. The caller
	// owns the returned handle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

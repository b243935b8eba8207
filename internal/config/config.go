// Package config provides the configuration schema, loader, validation and
// hot-reload watcher for the sitescope narration analyzer.
package config

import (
	"time"

	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/internal/transcript"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// LogLevel controls log verbosity for the sitescope server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how the MCP tool server is exposed.
type Transport string

const (
	// TransportStdio serves MCP over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves MCP over the streamable HTTP transport.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// Config is the root configuration structure for sitescope.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Every field is optional; zero values select the built-in defaults.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Terminology TerminologyConfig `yaml:"terminology"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Batch       BatchConfig       `yaml:"batch"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// ServerConfig holds network and logging settings for the HTTP API.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxBodyBytes caps the size of a request body. Default: 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CacheSize is the number of analysis results kept for repeated
	// narration. Zero selects the default of 256; negative disables caching.
	CacheSize int `yaml:"cache_size"`

	// FeedbackFile enables POST /v1/feedback, appending estimator feedback
	// to this JSON-lines file.
	FeedbackFile string `yaml:"feedback_file"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AnalysisConfig tunes the quantity normalizer and the scope organizer.
type AnalysisConfig struct {
	// Tolerances override the relative deviations of dimension checks.
	Tolerances ToleranceConfig `yaml:"tolerances"`

	UnknownUnitPenalty  float64 `yaml:"unknown_unit_penalty"`
	MultiStepPenalty    float64 `yaml:"multi_step_penalty"`
	LargeValueThreshold float64 `yaml:"large_value_threshold"`
	ConflictThreshold   float64 `yaml:"conflict_threshold"`
	DuplicateThreshold  float64 `yaml:"duplicate_threshold"`
	SimilarContext      float64 `yaml:"similar_context"`

	// ContextWindow is the number of characters kept either side of a
	// measurement and used to group measurements of the same extent.
	ContextWindow int `yaml:"context_window"`

	// AttachRadius is the maximum distance, in bytes, between a scope item
	// and a measurement attached to it.
	AttachRadius int `yaml:"attach_radius"`

	// Units are added to the built-in unit conversion table. An entry whose
	// label or alias is already known replaces the built-in one.
	Units []quantity.Unit `yaml:"units"`

	// CountNouns are added to the nouns a bare number may count.
	CountNouns []string `yaml:"count_nouns"`

	// TablesFile is an optional YAML file replacing the built-in trade
	// profiles, advisories and material rules of the scope organizer.
	TablesFile string `yaml:"tables_file"`
}

// ToleranceConfig holds per-check tolerance overrides. Zero keeps the
// built-in value.
type ToleranceConfig struct {
	Linear float64 `yaml:"linear"`
	Area   float64 `yaml:"area"`
	Volume float64 `yaml:"volume"`
	Direct float64 `yaml:"direct"`
}

// QuantitySettings overlays the non-zero fields of a on
// [quantity.DefaultSettings].
func (a AnalysisConfig) QuantitySettings() quantity.Settings {
	s := quantity.DefaultSettings()
	set := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	set(&s.Tolerances.Linear, a.Tolerances.Linear)
	set(&s.Tolerances.Area, a.Tolerances.Area)
	set(&s.Tolerances.Volume, a.Tolerances.Volume)
	set(&s.Tolerances.Direct, a.Tolerances.Direct)
	set(&s.UnknownUnitPenalty, a.UnknownUnitPenalty)
	set(&s.MultiStepPenalty, a.MultiStepPenalty)
	set(&s.LargeValueThreshold, a.LargeValueThreshold)
	set(&s.ConflictThreshold, a.ConflictThreshold)
	set(&s.DuplicateThreshold, a.DuplicateThreshold)
	set(&s.SimilarContext, a.SimilarContext)
	if a.ContextWindow > 0 {
		s.ContextWindow = a.ContextWindow
	}
	return s
}

// TerminologyConfig configures the terminology corrector.
type TerminologyConfig struct {
	// Lexicon entries are added after the built-in dictionary.
	Lexicon []transcript.LexiconEntry `yaml:"lexicon"`

	// ReplaceLexicon drops the built-in dictionary so only Lexicon applies.
	ReplaceLexicon bool `yaml:"replace_lexicon"`

	// SpokenNumbers toggles the spoken-number stage. Default: true.
	SpokenNumbers *bool `yaml:"spoken_numbers"`

	// Phonetic configures the optional phonetic vocabulary stage.
	Phonetic PhoneticConfig `yaml:"phonetic"`
}

// SpokenNumbersEnabled reports whether the spoken-number stage is on.
func (t TerminologyConfig) SpokenNumbersEnabled() bool {
	return t.SpokenNumbers == nil || *t.SpokenNumbers
}

// PhoneticConfig configures phonetic matching of misheard trade terms.
type PhoneticConfig struct {
	Enabled bool `yaml:"enabled"`

	// Vocabulary replaces the built-in trade vocabulary when non-empty.
	Vocabulary []string `yaml:"vocabulary"`

	// PhoneticThreshold is the minimum Jaro-Winkler score for a candidate
	// with a matching phonetic code. Zero keeps the matcher default.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum score without a phonetic match.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// TranscriberConfig describes the upstream speech-to-text session used for
// spoken captures.
type TranscriberConfig struct {
	// Language is the BCP-47 recognition language. Default: "en-US".
	Language string `yaml:"language"`

	// SampleRate is the audio sample rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// Keywords are boosted trade terms sent with every session.
	Keywords []stt.KeywordBoost `yaml:"keywords"`

	// MinConfidence is the transcript confidence below which an analysis
	// carries a low-confidence warning. Default: 0.6.
	MinConfidence float64 `yaml:"min_confidence"`

	// Services are the speech-to-text services that transcribe uploaded
	// audio, in order of preference. Without services spoken captures are
	// disabled and only text narration is accepted.
	Services []TranscriberService `yaml:"services"`

	// Breaker tunes the circuit breaker kept per service.
	Breaker BreakerConfig `yaml:"breaker"`
}

// Supported transcription services.
const ServiceDeepgram = "deepgram"

// TranscriberService configures one speech-to-text service.
type TranscriberService struct {
	// Name selects the implementation. Only "deepgram" is supported.
	Name string `yaml:"name"`

	// APIKey authenticates with the service. A value of the form "$VAR" or
	// "${VAR}" is read from the environment.
	APIKey string `yaml:"api_key"`

	// Model is the recognition model (e.g. "nova-3").
	Model string `yaml:"model"`

	// Endpoint overrides the streaming endpoint URL.
	Endpoint string `yaml:"endpoint"`
}

// BreakerConfig holds circuit breaker settings. Zero values keep the
// defaults of five failures, a 30s reset timeout and three half-open probes.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// BatchConfig bounds concurrent batch analysis.
type BatchConfig struct {
	// Concurrency is the maximum number of captures analysed at once.
	// Default: the number of CPUs.
	Concurrency int `yaml:"concurrency"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default: "sitescope".
	ServiceName string `yaml:"service_name"`

	// Metrics enables the /metrics Prometheus endpoint.
	Metrics bool `yaml:"metrics"`
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	// Transport selects how tools are served. Default: stdio.
	Transport Transport `yaml:"transport"`

	// ListenAddr is the address of the streamable HTTP transport.
	ListenAddr string `yaml:"listen_addr"`
}

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/pkg/types"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// An empty document yields the zero [Config], which selects every default.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.CacheSize > 1<<20 {
		slog.Warn("server.cache_size is very large; cached results are held in memory", "cache_size", cfg.Server.CacheSize)
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes %d must not be negative", cfg.Server.MaxBodyBytes))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Analysis
	a := cfg.Analysis
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"analysis.tolerances.linear", a.Tolerances.Linear},
		{"analysis.tolerances.area", a.Tolerances.Area},
		{"analysis.tolerances.volume", a.Tolerances.Volume},
		{"analysis.tolerances.direct", a.Tolerances.Direct},
		{"analysis.unknown_unit_penalty", a.UnknownUnitPenalty},
		{"analysis.multi_step_penalty", a.MultiStepPenalty},
		{"analysis.conflict_threshold", a.ConflictThreshold},
		{"analysis.duplicate_threshold", a.DuplicateThreshold},
		{"analysis.similar_context", a.SimilarContext},
	} {
		if f.value < 0 || f.value > 1 {
			errs = append(errs, fmt.Errorf("%s %.3f is out of range [0, 1]", f.name, f.value))
		}
	}
	if a.LargeValueThreshold < 0 {
		errs = append(errs, fmt.Errorf("analysis.large_value_threshold %.0f must not be negative", a.LargeValueThreshold))
	}
	if a.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("analysis.context_window %d must not be negative", a.ContextWindow))
	}
	if a.AttachRadius < 0 {
		errs = append(errs, fmt.Errorf("analysis.attach_radius %d must not be negative", a.AttachRadius))
	}
	if s := a.QuantitySettings(); s.DuplicateThreshold >= s.ConflictThreshold {
		errs = append(errs, fmt.Errorf("analysis.duplicate_threshold %.3f must be below analysis.conflict_threshold %.3f",
			s.DuplicateThreshold, s.ConflictThreshold))
	}
	if a.Tolerances.Area > 0.25 || a.Tolerances.Volume > 0.25 {
		slog.Warn("analysis tolerance above 25%; dimension mismatches will rarely be flagged",
			"area", a.Tolerances.Area,
			"volume", a.Tolerances.Volume,
		)
	}
	for i, u := range a.Units {
		errs = append(errs, validateUnit(fmt.Sprintf("analysis.units[%d]", i), u)...)
	}
	if a.TablesFile != "" {
		if _, err := os.Stat(a.TablesFile); err != nil {
			errs = append(errs, fmt.Errorf("analysis.tables_file: %w", err))
		}
	}

	// Terminology
	for i, e := range cfg.Terminology.Lexicon {
		if e.From == "" {
			errs = append(errs, fmt.Errorf("terminology.lexicon[%d].from is required", i))
		}
	}
	if cfg.Terminology.ReplaceLexicon && len(cfg.Terminology.Lexicon) == 0 {
		slog.Warn("terminology.replace_lexicon is set without lexicon entries; the lexicon stage is disabled")
	}
	p := cfg.Terminology.Phonetic
	if p.PhoneticThreshold < 0 || p.PhoneticThreshold > 1 {
		errs = append(errs, fmt.Errorf("terminology.phonetic.phonetic_threshold %.2f is out of range [0, 1]", p.PhoneticThreshold))
	}
	if p.FuzzyThreshold < 0 || p.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("terminology.phonetic.fuzzy_threshold %.2f is out of range [0, 1]", p.FuzzyThreshold))
	}
	if !p.Enabled && (len(p.Vocabulary) > 0 || p.PhoneticThreshold != 0 || p.FuzzyThreshold != 0) {
		slog.Warn("terminology.phonetic is configured but not enabled")
	}

	// Transcriber
	if cfg.Transcriber.MinConfidence < 0 || cfg.Transcriber.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("transcriber.min_confidence %.2f is out of range [0, 1]", cfg.Transcriber.MinConfidence))
	}
	if cfg.Transcriber.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("transcriber.sample_rate %d must not be negative", cfg.Transcriber.SampleRate))
	}
	for i, k := range cfg.Transcriber.Keywords {
		if k.Keyword == "" {
			errs = append(errs, fmt.Errorf("transcriber.keywords[%d].keyword is required", i))
		}
	}

	seen := make(map[string]bool)
	for i, svc := range cfg.Transcriber.Services {
		prefix := fmt.Sprintf("transcriber.services[%d]", i)
		if svc.Name != ServiceDeepgram {
			errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: deepgram", prefix, svc.Name))
		}
		if svc.ResolvedAPIKey() == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", prefix))
		}
		key := svc.Name + "|" + svc.Endpoint + "|" + svc.Model
		if seen[key] {
			slog.Warn("transcriber service is listed twice; the duplicate only adds a retry", "service", prefix)
		}
		seen[key] = true
	}
	b := cfg.Transcriber.Breaker
	if b.MaxFailures < 0 || b.HalfOpenMax < 0 || b.ResetTimeout < 0 {
		errs = append(errs, errors.New("transcriber.breaker values must not be negative"))
	}

	// Batch
	if cfg.Batch.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("batch.concurrency %d must not be negative", cfg.Batch.Concurrency))
	}

	// MCP
	if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
	}
	if cfg.MCP.Transport == TransportStreamableHTTP && cfg.MCP.ListenAddr == "" {
		errs = append(errs, errors.New("mcp.listen_addr is required when transport is streamable-http"))
	}

	return errors.Join(errs...)
}

// ResolvedAPIKey returns the API key, reading it from the environment when
// it names a variable.
func (s TranscriberService) ResolvedAPIKey() string {
	k := strings.TrimSpace(s.APIKey)
	if strings.HasPrefix(k, "$") {
		return os.Getenv(strings.Trim(k[1:], "{}"))
	}
	return k
}

// validateUnit checks one unit table entry.
func validateUnit(prefix string, u quantity.Unit) []error {
	var errs []error
	if u.Label == "" {
		errs = append(errs, fmt.Errorf("%s.label is required", prefix))
	}
	switch u.Class {
	case types.ClassLinear, types.ClassSquare, types.ClassCubic, types.ClassCount, types.ClassWeight:
	default:
		errs = append(errs, fmt.Errorf("%s.class %q is invalid; valid values: linear, square, cubic, count, weight", prefix, u.Class))
	}
	if u.Factor <= 0 {
		errs = append(errs, fmt.Errorf("%s.factor must be positive", prefix))
	}
	return errs
}

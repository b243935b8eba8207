package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AnalysisChanged is true when the normalizer or organizer settings
	// changed and the analyzer must be rebuilt.
	AnalysisChanged bool

	// TerminologyChanged is true when the corrector must be rebuilt.
	TerminologyChanged bool

	TranscriberChanged bool
	BatchChanged       bool

	// RestartRequired lists changed sections that only take effect after a
	// restart (listeners, telemetry, MCP transport).
	RestartRequired []string
}

// Changed reports whether any hot-reloadable section changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AnalysisChanged || d.TerminologyChanged ||
		d.TranscriberChanged || d.BatchChanged
}

// RebuildAnalyzer reports whether the analysis pipeline must be rebuilt.
func (d ConfigDiff) RebuildAnalyzer() bool {
	return d.AnalysisChanged || d.TerminologyChanged || d.TranscriberChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.AnalysisChanged = !reflect.DeepEqual(old.Analysis, new.Analysis)
	d.TerminologyChanged = !reflect.DeepEqual(old.Terminology, new.Terminology)
	d.TranscriberChanged = !reflect.DeepEqual(recognition(old.Transcriber), recognition(new.Transcriber))
	d.BatchChanged = old.Batch != new.Batch

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.MaxBodyBytes != new.Server.MaxBodyBytes ||
		old.Server.FeedbackFile != new.Server.FeedbackFile ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Transcriber.Services, new.Transcriber.Services) ||
		old.Transcriber.Breaker != new.Transcriber.Breaker {
		d.RestartRequired = append(d.RestartRequired, "transcriber.services")
	}
	if old.Server.CacheSize != new.Server.CacheSize {
		d.RestartRequired = append(d.RestartRequired, "server.cache_size")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}

	return d
}

// recognition strips the service list, which cannot be swapped at runtime.
func recognition(t TranscriberConfig) TranscriberConfig {
	t.Services = nil
	t.Breaker = BreakerConfig{}
	return t
}

package analyzer

import (
	"fmt"
	"slices"

	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/measure"
	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/internal/scope"
	"github.com/MrWong99/sitescope/internal/transcript"
	"github.com/MrWong99/sitescope/internal/transcript/phonetic"
)

// FromConfig builds an [Analyzer] from the analysis, terminology, transcriber
// and batch sections of cfg. extra options are applied last.
func FromConfig(cfg *config.Config, extra ...Option) (*Analyzer, error) {
	corrector, err := correctorFromConfig(cfg.Terminology)
	if err != nil {
		return nil, err
	}

	a := cfg.Analysis
	nouns := quantity.DefaultCountNouns
	if len(a.CountNouns) > 0 {
		nouns = append(slices.Clone(nouns), a.CountNouns...)
	}
	settings := a.QuantitySettings()

	units := quantity.DefaultUnitTable()
	if len(a.Units) > 0 || len(a.CountNouns) > 0 {
		units = quantity.NewUnitTable(append(slices.Clone(quantity.DefaultUnits), a.Units...), nouns)
	}

	orgOpts := []scope.Option{scope.WithAttachRadius(a.AttachRadius)}
	if a.TablesFile != "" {
		tables, err := scope.LoadTablesFile(a.TablesFile)
		if err != nil {
			return nil, fmt.Errorf("analyzer: %w", err)
		}
		orgOpts = append(orgOpts, scope.WithTables(tables))
	}
	organizer, err := scope.New(orgOpts...)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	opts := []Option{
		WithCorrector(corrector),
		WithExtractor(measure.New(
			measure.WithContextWindow(settings.ContextWindow),
			measure.WithCountNouns(nouns),
		)),
		WithNormalizer(quantity.New(
			quantity.WithSettings(settings),
			quantity.WithUnitTable(units),
		)),
		WithOrganizer(organizer),
		WithMinConfidence(cfg.Transcriber.MinConfidence),
		WithConcurrency(cfg.Batch.Concurrency),
	}
	return New(append(opts, extra...)...), nil
}

// correctorFromConfig builds the terminology corrector.
func correctorFromConfig(t config.TerminologyConfig) (*transcript.CorrectionPipeline, error) {
	var entries []transcript.LexiconEntry
	if !t.ReplaceLexicon {
		entries = slices.Clone(transcript.DefaultLexicon)
	}
	entries = append(entries, t.Lexicon...)

	opts := []transcript.PipelineOption{transcript.WithSpokenNumbers(t.SpokenNumbersEnabled())}
	if len(entries) == 0 {
		opts = append(opts, transcript.WithLexicon(nil))
	} else {
		lex, err := transcript.NewLexicon(entries)
		if err != nil {
			return nil, fmt.Errorf("analyzer: terminology lexicon: %w", err)
		}
		opts = append(opts, transcript.WithLexicon(lex))
	}

	if t.Phonetic.Enabled {
		m := phonetic.New(
			phonetic.WithPhoneticThreshold(t.Phonetic.PhoneticThreshold),
			phonetic.WithFuzzyThreshold(t.Phonetic.FuzzyThreshold),
		)
		opts = append(opts, transcript.WithPhoneticMatcher(m, t.Phonetic.Vocabulary))
	}
	return transcript.NewPipeline(opts...), nil
}

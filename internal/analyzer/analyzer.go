// Package analyzer wires the narration pipeline together: terminology
// correction, measurement extraction, quantity normalization and scope
// organization.
//
// An [Analyzer] holds only read-only stages, so any number of captures may be
// analysed concurrently. Uncertain narration never fails: it produces a
// lower-confidence [Result] with warnings and ambiguities. The only input the
// analyzer rejects is narration that is not valid UTF-8
// ([ErrInvalidNarration]).
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/sitescope/internal/measure"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/internal/scope"
	"github.com/MrWong99/sitescope/internal/transcript"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
	"github.com/MrWong99/sitescope/pkg/types"
)

// ErrInvalidNarration is returned for narration that is not valid UTF-8 text.
var ErrInvalidNarration = errors.New("analyzer: narration is not valid UTF-8")

// DefaultMinConfidence is the transcript confidence below which a result
// carries a low-confidence warning.
const DefaultMinConfidence = 0.6

// Capture is one narration to analyse.
type Capture struct {
	// ID is an optional caller-chosen identifier echoed in the [Result].
	ID string `json:"id,omitempty"`

	// Transcript carries the narration text and, for spoken captures, the
	// recogniser confidence. Zero confidence means none was reported.
	Transcript stt.Transcript `json:"transcript"`

	// Photos are references to site photos taken during the walk-through.
	Photos []string `json:"photos,omitempty"`
}

// Result is the complete analysis of one capture.
type Result struct {
	ID string `json:"id,omitempty"`

	// Narration is the text as received; Corrected is what was analysed.
	Narration   string                  `json:"narration"`
	Corrected   string                  `json:"correctedNarration"`
	Corrections []transcript.Correction `json:"corrections"`

	// TranscriptConfidence is the recogniser confidence, zero when unknown.
	TranscriptConfidence float64 `json:"transcriptConfidence,omitempty"`

	Measurements []types.MeasurementToken          `json:"measurements"`
	Quantities   types.QuantityNormalizationResult `json:"quantities"`
	Analysis     types.ScopeAnalysisResult         `json:"analysis"`

	ProcessingTime time.Duration `json:"processingTime"`
}

// Option is a functional option for configuring an [Analyzer].
type Option func(*Analyzer)

// WithCorrector replaces the terminology corrector.
func WithCorrector(p transcript.Pipeline) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.corrector = p
		}
	}
}

// WithExtractor replaces the measurement extractor.
func WithExtractor(e *measure.Extractor) Option {
	return func(a *Analyzer) {
		if e != nil {
			a.extractor = e
		}
	}
}

// WithNormalizer replaces the quantity normalizer.
func WithNormalizer(n *quantity.Normalizer) Option {
	return func(a *Analyzer) {
		if n != nil {
			a.normalizer = n
		}
	}
}

// WithOrganizer replaces the scope organizer.
func WithOrganizer(o *scope.Organizer) Option {
	return func(a *Analyzer) {
		if o != nil {
			a.organizer = o
		}
	}
}

// WithMetrics records pipeline metrics on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

// WithMinConfidence sets the transcript confidence threshold of the
// low-confidence warning. Non-positive values are ignored.
func WithMinConfidence(c float64) Option {
	return func(a *Analyzer) {
		if c > 0 {
			a.minConfidence = c
		}
	}
}

// WithConcurrency bounds [Analyzer.AnalyzeBatch]. Non-positive values are
// ignored. Default: [runtime.NumCPU].
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithClock overrides the time source used for processing times.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// Analyzer runs the narration pipeline. It is read-only after construction
// and safe for concurrent use.
type Analyzer struct {
	corrector     transcript.Pipeline
	extractor     *measure.Extractor
	normalizer    *quantity.Normalizer
	organizer     *scope.Organizer
	metrics       *observe.Metrics
	minConfidence float64
	concurrency   int
	now           func() time.Time
}

// New returns an [Analyzer] over the built-in stages.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		minConfidence: DefaultMinConfidence,
		concurrency:   runtime.NumCPU(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.corrector == nil {
		a.corrector = transcript.NewPipeline()
	}
	if a.extractor == nil {
		a.extractor = measure.New()
	}
	if a.normalizer == nil {
		a.normalizer = quantity.New()
	}
	if a.organizer == nil {
		a.organizer = scope.MustNew()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Analyze analyses plain narration text.
func (a *Analyzer) Analyze(ctx context.Context, narration string) (*Result, error) {
	return a.AnalyzeCapture(ctx, Capture{Transcript: stt.Transcript{Text: narration}})
}

// AnalyzeCapture runs the full pipeline over one capture.
//
// Pipeline flow:
//  1. Terminology correction of the transcript text.
//  2. Measurement extraction from the corrected text.
//  3. Quantity normalization against the corrected text.
//  4. Scope organization. Failed or borderline dimension checks and a low
//     transcript confidence are added as warnings.
//
// Context cancellation is honoured between stages.
func (a *Analyzer) AnalyzeCapture(ctx context.Context, c Capture) (*Result, error) {
	start := a.now()
	ctx, span := observe.StartSpan(ctx, "analyzer.capture")
	defer span.End()

	a.metrics.ActiveCaptures.Add(ctx, 1)
	defer a.metrics.ActiveCaptures.Add(ctx, -1)

	res, err := a.run(ctx, c)
	elapsed := a.now().Sub(start)
	if err != nil {
		observe.RecordError(ctx, err)
		a.metrics.RecordCapture(ctx, observe.StatusRejected, elapsed.Seconds())
		return nil, err
	}
	res.ProcessingTime = elapsed

	status := observe.StatusOK
	if len(res.Analysis.Warnings) > 0 {
		status = observe.StatusWarning
	}
	a.metrics.RecordCapture(ctx, status, elapsed.Seconds())

	observe.Logger(ctx).Info("narration analysed",
		"capture", c.ID,
		"measurements", len(res.Measurements),
		"categories", len(res.Analysis.Scope.WorkCategories),
		"ambiguities", len(res.Quantities.Ambiguities),
		"warnings", len(res.Analysis.Warnings),
		"confidence", res.Analysis.Confidence,
		"duration", elapsed,
	)
	return res, nil
}

func (a *Analyzer) run(ctx context.Context, c Capture) (*Result, error) {
	q, err := a.quantities(ctx, c.Transcript)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, done := observe.StartStage(ctx, a.metrics, observe.StageOrganize)
	analysis := a.organizer.Organize(q.Corrected, q.Measurements, c.Photos)
	analysis = scope.AddWarnings(analysis, a.warnings(c.Transcript, q.Quantities)...)
	done()
	observe.Logger(ctx).Debug("scope organized",
		"categories", len(analysis.Scope.WorkCategories),
		"confidence", analysis.Confidence,
	)

	return &Result{
		ID:                   c.ID,
		Narration:            q.Narration,
		Corrected:            q.Corrected,
		Corrections:          q.Corrections,
		TranscriptConfidence: c.Transcript.Confidence,
		Measurements:         q.Measurements,
		Quantities:           q.Quantities,
		Analysis:             analysis,
	}, nil
}

// QuantityResult is the outcome of the pipeline up to quantity
// normalization, without scope organization.
type QuantityResult struct {
	Narration    string                            `json:"narration"`
	Corrected    string                            `json:"correctedNarration"`
	Corrections  []transcript.Correction           `json:"corrections"`
	Measurements []types.MeasurementToken          `json:"measurements"`
	Quantities   types.QuantityNormalizationResult `json:"quantities"`
}

// Correct runs only terminology correction.
func (a *Analyzer) Correct(ctx context.Context, narration string) (*transcript.CorrectedTranscript, error) {
	if !utf8.ValidString(narration) {
		return nil, ErrInvalidNarration
	}
	return a.correct(ctx, stt.Transcript{Text: narration}), nil
}

// Quantities runs correction, extraction and normalization.
func (a *Analyzer) Quantities(ctx context.Context, narration string) (*QuantityResult, error) {
	ctx, span := observe.StartSpan(ctx, "analyzer.quantities")
	defer span.End()

	q, err := a.quantities(ctx, stt.Transcript{Text: narration})
	observe.RecordError(ctx, err)
	return q, err
}

func (a *Analyzer) quantities(ctx context.Context, t stt.Transcript) (*QuantityResult, error) {
	if !utf8.ValidString(t.Text) {
		return nil, ErrInvalidNarration
	}
	log := observe.Logger(ctx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	corrected := a.correct(ctx, t)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stageCtx, done := observe.StartStage(ctx, a.metrics, observe.StageExtract)
	tokens := a.extractor.Extract(corrected.Corrected)
	for _, tok := range tokens {
		a.metrics.RecordToken(stageCtx, string(tok.Type))
	}
	done()
	log.Debug("measurements extracted", "tokens", len(tokens))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stageCtx, done = observe.StartStage(ctx, a.metrics, observe.StageNormalize)
	quantities := a.normalizer.Normalize(tokens, corrected.Corrected)
	for _, amb := range quantities.Ambiguities {
		a.metrics.RecordAmbiguity(stageCtx, string(amb.Type), string(amb.Severity))
	}
	done()
	log.Debug("quantities normalized",
		"quantities", len(quantities.NormalizedQuantities),
		"validations", len(quantities.DimensionValidations),
		"ambiguities", len(quantities.Ambiguities),
	)

	return &QuantityResult{
		Narration:    t.Text,
		Corrected:    corrected.Corrected,
		Corrections:  corrected.Corrections,
		Measurements: tokens,
		Quantities:   quantities,
	}, nil
}

func (a *Analyzer) correct(ctx context.Context, t stt.Transcript) *transcript.CorrectedTranscript {
	stageCtx, done := observe.StartStage(ctx, a.metrics, observe.StageCorrect)
	defer done()
	corrected := a.corrector.CorrectTranscript(t)
	for _, cr := range corrected.Corrections {
		a.metrics.RecordCorrection(stageCtx, cr.Method)
	}
	observe.Logger(ctx).Debug("terminology corrected", "corrections", len(corrected.Corrections))
	return corrected
}

// warnings derives the pipeline-level warnings the organizer cannot see:
// a low transcript confidence and dimension checks that did not pass.
func (a *Analyzer) warnings(t stt.Transcript, q types.QuantityNormalizationResult) []string {
	var out []string
	if t.Confidence > 0 && t.Confidence < a.minConfidence {
		out = append(out, fmt.Sprintf("Transcript confidence %.2f is below %.2f; review the narration before pricing",
			t.Confidence, a.minConfidence))
	}
	for _, v := range q.DimensionValidations {
		switch v.ValidationLevel {
		case types.LevelFail:
			out = append(out, fmt.Sprintf("Dimension check failed: calculated %s %s but %s %s was stated",
				types.FormatNumber(v.CalculatedTotal), v.ProvidedUnit, types.FormatNumber(v.ProvidedTotal), v.ProvidedUnit))
		case types.LevelWarning:
			out = append(out, fmt.Sprintf("Dimension check is borderline: calculated %s %s against a stated %s %s",
				types.FormatNumber(v.CalculatedTotal), v.ProvidedUnit, types.FormatNumber(v.ProvidedTotal), v.ProvidedUnit))
		}
	}
	return out
}

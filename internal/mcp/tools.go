package mcp

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/internal/report"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// AnalyzeInput is the input schema of analyze_narration.
type AnalyzeInput struct {
	Narration  string   `json:"narration" jsonschema:"the site walk-through narration to analyse"`
	ID         string   `json:"id,omitempty" jsonschema:"optional identifier echoed in the result"`
	Confidence float64  `json:"confidence,omitempty" jsonschema:"speech recognition confidence between 0 and 1, if the narration was dictated"`
	Photos     []string `json:"photos,omitempty" jsonschema:"references to site photos taken during the walk-through"`
	Format     string   `json:"format,omitempty" jsonschema:"json (default) for structured output or text for a readable report"`
}

// NarrationInput is the input schema of normalize_quantities and
// correct_terminology.
type NarrationInput struct {
	Narration string `json:"narration" jsonschema:"the site walk-through narration"`
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name: ToolAnalyze,
		Description: "Turn construction-site narration into trade-organized scope of work: " +
			"extracted measurements, normalized quantities, dimension checks, ambiguities " +
			"needing confirmation, aggregated totals, work categories in trade sequence, " +
			"materials and labor.",
	}, instrument[AnalyzeInput](s.metrics, ToolAnalyze, s.handleAnalyze))

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name: ToolNormalize,
		Description: "Extract and normalize the measurements in construction-site narration " +
			"without organizing scope. Reports dimension checks and ambiguities.",
	}, instrument[NarrationInput](s.metrics, ToolNormalize, s.handleNormalize))

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name: ToolCorrect,
		Description: "Correct mis-transcribed trade terms and spoken numbers in narration " +
			"and list every substitution.",
	}, instrument[NarrationInput](s.metrics, ToolCorrect, s.handleCorrect))
}

func (s *Server) handleAnalyze(ctx context.Context, _ *mcpsdk.CallToolRequest, in AnalyzeInput) (*mcpsdk.CallToolResult, any, error) {
	f, err := report.ParseFormat(in.Format)
	if err != nil {
		return nil, nil, err
	}
	c := analyzer.Capture{
		ID:         in.ID,
		Transcript: stt.Transcript{Text: in.Narration, Confidence: in.Confidence},
		Photos:     in.Photos,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	res, err := s.analyzers.Load().AnalyzeCapture(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, f, res); err != nil {
		return nil, nil, err
	}
	return textResult(buf.String()), nil, nil
}

func (s *Server) handleNormalize(ctx context.Context, _ *mcpsdk.CallToolRequest, in NarrationInput) (*mcpsdk.CallToolResult, any, error) {
	res, err := s.analyzers.Load().Quantities(ctx, in.Narration)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(res)
}

func (s *Server) handleCorrect(ctx context.Context, _ *mcpsdk.CallToolRequest, in NarrationInput) (*mcpsdk.CallToolResult, any, error) {
	res, err := s.analyzers.Load().Correct(ctx, in.Narration)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, v); err != nil {
		return nil, nil, err
	}
	return textResult(buf.String()), nil, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

// instrument records the latency and outcome of every call to h.
func instrument[In any](m *observe.Metrics, tool string, h mcpsdk.ToolHandlerFor[In, any]) mcpsdk.ToolHandlerFor[In, any] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, in In) (*mcpsdk.CallToolResult, any, error) {
		ctx, span := observe.StartSpan(ctx, "mcp.tool."+tool)
		defer span.End()

		start := time.Now()
		res, out, err := h(ctx, req, in)
		m.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("tool", tool)),
		)

		status := "ok"
		if err != nil {
			status = "error"
			observe.RecordError(ctx, err)
			observe.Logger(ctx).Warn("tool call failed", "tool", tool, "err", err)
		}
		m.RecordToolCall(ctx, tool, status)
		return res, out, err
	}
}

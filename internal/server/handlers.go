package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/capture"
	"github.com/MrWong99/sitescope/internal/feedback"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/internal/report"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// cacheHeader reports whether an analysis was served from the result cache.
const cacheHeader = "X-Sitescope-Cache"

var (
	errNoTranscriber = errors.New("audio capture is not configured")
	errNoFeedback    = errors.New("feedback is not enabled")
)

// NarrationRequest is the body of the normalize and correct routes.
type NarrationRequest struct {
	Narration string `json:"narration"`
}

// BatchRequest is the body of POST /v1/analyze/batch.
type BatchRequest struct {
	Captures []analyzer.Capture `json:"captures"`
}

// BatchItem is one entry of a [BatchResponse], in request order. Exactly one
// of Result and Error is set.
type BatchItem struct {
	ID     string           `json:"id"`
	Result *analyzer.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// BatchResponse is the JSON answer of POST /v1/analyze/batch.
type BatchResponse struct {
	Items []BatchItem `json:"items"`
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	f, ok := s.format(w, r)
	if !ok {
		return
	}
	c, err := s.decodeCapture(w, r)
	if err != nil {
		s.writeError(w, r, requestStatus(err), err)
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	res, err := s.analyze(r.Context(), w, c)
	if err != nil {
		s.writeError(w, r, analysisStatus(err), err)
		return
	}
	s.writeResults(w, r, f, res)
}

// analyze serves c from the cache or runs the current analyzer.
func (s *Server) analyze(ctx context.Context, w http.ResponseWriter, c analyzer.Capture) (*analyzer.Result, error) {
	a := s.analyzers.Load()
	if s.cache != nil {
		if res, ok := s.cache.Get(a, c); ok {
			w.Header().Set(cacheHeader, "hit")
			observe.Logger(ctx).Debug("analysis served from cache", "capture", c.ID)
			return res, nil
		}
		w.Header().Set(cacheHeader, "miss")
	}
	res, err := a.AnalyzeCapture(ctx, c)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.analyzers.Load() == a {
		s.cache.Add(a, c, res)
	}
	return res, nil
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	f, ok := s.format(w, r)
	if !ok {
		return
	}
	var req BatchRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, requestStatus(err), err)
		return
	}
	for i := range req.Captures {
		if req.Captures[i].ID == "" {
			req.Captures[i].ID = uuid.NewString()
		}
	}

	items, err := s.analyzers.Load().AnalyzeBatch(r.Context(), req.Captures)
	if err != nil {
		s.writeError(w, r, analysisStatus(err), err)
		return
	}

	resp := BatchResponse{Items: make([]BatchItem, len(items))}
	for i, it := range items {
		resp.Items[i] = BatchItem{ID: req.Captures[i].ID, Result: it.Result}
		if it.Err != nil {
			resp.Items[i].Error = it.Err.Error()
		}
	}

	if f == report.FormatText {
		w.Header().Set("Content-Type", f.ContentType())
		if err := writeBatchText(w, resp); err != nil {
			observe.Logger(r.Context()).Warn("writing batch report", "err", err)
		}
		return
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

// writeBatchText renders the successful results followed by the rejected
// captures.
func writeBatchText(w io.Writer, resp BatchResponse) error {
	var (
		results  []*analyzer.Result
		rejected []string
	)
	for _, it := range resp.Items {
		if it.Result != nil {
			results = append(results, it.Result)
			continue
		}
		rejected = append(rejected, fmt.Sprintf("  %s: %s\n", it.ID, it.Error))
	}
	if err := report.WriteText(w, results...); err != nil {
		return err
	}
	if len(rejected) == 0 {
		return nil
	}
	_, err := io.WriteString(w, "Rejected captures\n"+strings.Join(rejected, ""))
	return err
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.writeError(w, r, http.StatusNotImplemented, errNoTranscriber)
		return
	}
	f, ok := s.format(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	cfg := *s.streamCfg.Load()
	if lang := q.Get("language"); lang != "" {
		cfg.Language = lang
	}

	audio := http.MaxBytesReader(w, r.Body, s.maxAudio)
	t, err := capture.Record(r.Context(), s.transcriber, cfg, audio)
	if err != nil {
		s.writeError(w, r, audioStatus(err), err)
		return
	}

	c := analyzer.Capture{ID: q.Get("id"), Transcript: t, Photos: q["photo"]}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	res, err := s.analyze(r.Context(), w, c)
	if err != nil {
		s.writeError(w, r, analysisStatus(err), err)
		return
	}
	s.writeResults(w, r, f, res)
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req NarrationRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, requestStatus(err), err)
		return
	}
	res, err := s.analyzers.Load().Quantities(r.Context(), req.Narration)
	if err != nil {
		s.writeError(w, r, analysisStatus(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req NarrationRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, requestStatus(err), err)
		return
	}
	res, err := s.analyzers.Load().Correct(r.Context(), req.Narration)
	if err != nil {
		s.writeError(w, r, analysisStatus(err), err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		s.writeError(w, r, http.StatusNotImplemented, errNoFeedback)
		return
	}
	var fb feedback.Feedback
	if err := s.decodeJSON(w, r, &fb); err != nil {
		s.writeError(w, r, requestStatus(err), err)
		return
	}
	if err := fb.Validate(); err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	if err := s.feedback.Save(r.Context(), fb); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	observe.Logger(r.Context()).Info("feedback recorded", "capture", fb.CaptureID, "rating", fb.Rating)
	w.WriteHeader(http.StatusNoContent)
}

// ── Request decoding ────────────────────────────────────────────────────────

// format parses ?format=, answering 400 itself when it is invalid.
func (s *Server) format(w http.ResponseWriter, r *http.Request) (report.Format, bool) {
	f, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return f, true
}

// decodeCapture reads a JSON capture, or a plain-text body as bare narration.
func (s *Server) decodeCapture(w http.ResponseWriter, r *http.Request) (analyzer.Capture, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "text/plain" {
		var c analyzer.Capture
		err := s.decodeJSON(w, r, &c)
		return c, err
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return analyzer.Capture{}, fmt.Errorf("read body: %w", err)
	}
	return analyzer.Capture{
		ID:         r.URL.Query().Get("id"),
		Transcript: stt.Transcript{Text: string(body)},
		Photos:     r.URL.Query()["photo"],
	}, nil
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if dec.More() {
		return errors.New("decode request: unexpected data after the JSON body")
	}
	return nil
}

// ── Responses ───────────────────────────────────────────────────────────────

func requestStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func analysisStatus(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrInvalidNarration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; the status is never seen.
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func audioStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, capture.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return analysisStatus(err)
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeResults(w http.ResponseWriter, r *http.Request, f report.Format, results ...*analyzer.Result) {
	var buf bytes.Buffer
	if err := report.Write(&buf, f, results...); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, v); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	w.Header().Del(cacheHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

package server_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/feedback"
	"github.com/MrWong99/sitescope/internal/health"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/internal/resilience"
	"github.com/MrWong99/sitescope/internal/server"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
	"github.com/MrWong99/sitescope/pkg/provider/stt/mock"
)

const narration = "Install hardwood flooring in the living room that's about 20 by 15 feet. " +
	"Also frame a new wall using 2x4 studs, twenty-five linear feet. The bathroom needs 3 new outlets."

func newMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newServer(t *testing.T, opts ...server.Option) *server.Server {
	t.Helper()
	m := newMetrics(t)
	h := analyzer.NewHolder(analyzer.New(analyzer.WithMetrics(m)))
	s, err := server.New(h, append([]server.Option{server.WithMetrics(m)}, opts...)...)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return s
}

func do(t *testing.T, s *server.Server, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, s *server.Server, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return do(t, s, http.MethodPost, target, "application/json", bytes.NewReader(b))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAnalyze_JSON(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := postJSON(t, s, "/v1/analyze", analyzer.Capture{
		ID:         "walk-1",
		Transcript: stt.Transcript{Text: narration},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	res := decode[analyzer.Result](t, rec)
	if res.ID != "walk-1" {
		t.Errorf("ID = %q, want walk-1", res.ID)
	}
	if len(res.Analysis.Scope.WorkCategories) == 0 || len(res.Measurements) == 0 {
		t.Errorf("empty analysis: %+v", res.Analysis.Scope)
	}
}

func TestAnalyze_PlainTextAndTextReport(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := do(t, s, http.MethodPost, "/v1/analyze?format=text&photo=a.jpg", "text/plain; charset=utf-8", strings.NewReader(narration))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{"Narration\n", "Measurements\n", "Work categories\n", "1 site photos"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("text report misses %q", want)
		}
	}
}

func TestAnalyze_GeneratesID(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := postJSON(t, s, "/v1/analyze", analyzer.Capture{Transcript: stt.Transcript{Text: "Paint the hallway."}})
	res := decode[analyzer.Result](t, rec)
	if _, err := uuid.Parse(res.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", res.ID, err)
	}
}

func TestAnalyze_Cache(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	capture := func(id string) analyzer.Capture {
		return analyzer.Capture{ID: id, Transcript: stt.Transcript{Text: narration, Confidence: 0.9}}
	}

	first := postJSON(t, s, "/v1/analyze", capture("walk-1"))
	if got := first.Header().Get("X-Sitescope-Cache"); got != "miss" {
		t.Errorf("first request cache = %q, want miss", got)
	}
	second := postJSON(t, s, "/v1/analyze", capture("walk-2"))
	if got := second.Header().Get("X-Sitescope-Cache"); got != "hit" {
		t.Errorf("repeat request cache = %q, want hit", got)
	}
	if res := decode[analyzer.Result](t, second); res.ID != "walk-2" {
		t.Errorf("cached result ID = %q, want walk-2", res.ID)
	}

	other := capture("walk-3")
	other.Transcript.Confidence = 0.4
	if got := postJSON(t, s, "/v1/analyze", other).Header().Get("X-Sitescope-Cache"); got != "miss" {
		t.Errorf("different confidence cache = %q, want miss", got)
	}

	s.SetAnalyzer(analyzer.New(analyzer.WithMetrics(newMetrics(t)), analyzer.WithMinConfidence(0.95)))
	after := postJSON(t, s, "/v1/analyze", capture("walk-4"))
	if got := after.Header().Get("X-Sitescope-Cache"); got != "miss" {
		t.Errorf("cache after analyzer swap = %q, want miss", got)
	}
	res := decode[analyzer.Result](t, after)
	if len(res.Analysis.Warnings) == 0 {
		t.Error("swapped analyzer with a 0.95 threshold should warn about confidence 0.9")
	}
}

func TestAnalyze_CacheDisabled(t *testing.T) {
	t.Parallel()
	s := newServer(t, server.WithCacheSize(-1))

	rec := postJSON(t, s, "/v1/analyze", analyzer.Capture{Transcript: stt.Transcript{Text: narration}})
	if got := rec.Header().Get("X-Sitescope-Cache"); got != "" {
		t.Errorf("cache header = %q with caching disabled", got)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	t.Parallel()
	s := newServer(t, server.WithMaxBodyBytes(256))

	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		status      int
	}{
		{"unknown format", "/v1/analyze?format=pdf", "application/json", `{"transcript":{"text":"x"}}`, http.StatusBadRequest},
		{"malformed json", "/v1/analyze", "application/json", `{"transcript":`, http.StatusBadRequest},
		{"unknown field", "/v1/analyze", "application/json", `{"narration":"x"}`, http.StatusBadRequest},
		{"trailing data", "/v1/analyze", "application/json", `{} {}`, http.StatusBadRequest},
		{"too large", "/v1/analyze", "text/plain", strings.Repeat("a", 300), http.StatusRequestEntityTooLarge},
		{"invalid utf-8", "/v1/analyze", "text/plain", "pour \xff slab", http.StatusUnprocessableEntity},
		{"wrong method", "/v1/normalize", "", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			method := http.MethodPost
			if tc.status == http.StatusMethodNotAllowed {
				method = http.MethodGet
			}
			rec := do(t, s, method, tc.target, tc.contentType, strings.NewReader(tc.body))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}
			if tc.status != http.StatusMethodNotAllowed {
				if e := decode[map[string]string](t, rec); e["error"] == "" {
					t.Error("error body has no message")
				}
			}
		})
	}
}

func TestBatch(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := postJSON(t, s, "/v1/analyze/batch", server.BatchRequest{Captures: []analyzer.Capture{
		{ID: "walk-1", Transcript: stt.Transcript{Text: narration}},
		{Transcript: stt.Transcript{Text: "Replace 6 outlets in the kitchen."}},
		{ID: "walk-3", Transcript: stt.Transcript{Text: "Paint the hallway."}},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[server.BatchResponse](t, rec)
	if len(resp.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(resp.Items))
	}
	if resp.Items[0].ID != "walk-1" || resp.Items[2].ID != "walk-3" {
		t.Errorf("items out of order: %q, %q", resp.Items[0].ID, resp.Items[2].ID)
	}
	for i, it := range resp.Items {
		if it.Result == nil || it.Error != "" {
			t.Errorf("item %d: result %v, error %q", i, it.Result != nil, it.Error)
			continue
		}
		if it.Result.ID != it.ID {
			t.Errorf("item %d: result ID %q, item ID %q", i, it.Result.ID, it.ID)
		}
	}
}

func TestBatch_Text(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := postJSON(t, s, "/v1/analyze/batch?format=text", server.BatchRequest{Captures: []analyzer.Capture{
		{Transcript: stt.Transcript{Text: narration}},
		{Transcript: stt.Transcript{Text: "Replace 6 outlets in the kitchen."}},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := strings.Count(rec.Body.String(), "Narration\n"); got != 2 {
		t.Errorf("narration sections = %d, want 2", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := postJSON(t, s, "/v1/normalize", server.NarrationRequest{Narration: narration})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	doc := decode[map[string]any](t, rec)
	for _, key := range []string{"narration", "correctedNarration", "measurements", "quantities"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if _, ok := doc["analysis"]; ok {
		t.Error("normalize must not organize scope")
	}
}

func TestCorrect(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := postJSON(t, s, "/v1/correct", server.NarrationRequest{Narration: "twenty-five linear feet of base"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	doc := decode[struct {
		Corrected   string `json:"corrected"`
		Corrections []struct {
			Original string `json:"original"`
		} `json:"corrections"`
	}](t, rec)
	if !strings.HasPrefix(doc.Corrected, "25 linear feet") {
		t.Errorf("corrected = %q", doc.Corrected)
	}
	if len(doc.Corrections) == 0 {
		t.Error("no corrections reported")
	}
}

func TestAudio_NotConfigured(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := do(t, s, http.MethodPost, "/v1/analyze/audio", "application/octet-stream", bytes.NewReader([]byte{1, 2}))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}

func TestAudio(t *testing.T) {
	t.Parallel()
	sess := mock.NewSession(
		stt.Transcript{Text: "The bathroom needs 3 new outlets.", IsFinal: true, Confidence: 0.45, Duration: time.Second},
	)
	p := &mock.Provider{Session: sess}
	s := newServer(t, server.WithTranscriber(p, stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en-US"}))

	rec := do(t, s, http.MethodPost, "/v1/analyze/audio?id=walk-9&language=en-GB&photo=bath.jpg",
		"application/octet-stream", bytes.NewReader(make([]byte, 8000)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[analyzer.Result](t, rec)
	if res.ID != "walk-9" || res.Narration != "The bathroom needs 3 new outlets." {
		t.Errorf("result = %q %q", res.ID, res.Narration)
	}
	if res.TranscriptConfidence != 0.45 {
		t.Errorf("TranscriptConfidence = %v, want 0.45", res.TranscriptConfidence)
	}
	if len(res.Analysis.Warnings) == 0 {
		t.Error("expected a low-confidence warning")
	}
	if len(p.StartStreamCalls) != 1 || p.StartStreamCalls[0].Cfg.Language != "en-GB" {
		t.Errorf("StartStream calls = %+v", p.StartStreamCalls)
	}
	if len(sess.Audio) == 0 {
		t.Error("no audio streamed to the transcriber")
	}
}

func TestAudio_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		p      *mock.Provider
		status int
	}{
		{"no speech", &mock.Provider{Session: mock.NewSession()}, http.StatusUnprocessableEntity},
		{"transcriber down", &mock.Provider{StartStreamErr: errors.New("dial refused")}, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newServer(t, server.WithTranscriber(tc.p, stt.StreamConfig{}))
			rec := do(t, s, http.MethodPost, "/v1/analyze/audio", "application/octet-stream", bytes.NewReader([]byte{1, 2, 3, 4}))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}
		})
	}
}

func TestFeedback(t *testing.T) {
	t.Parallel()
	store := feedback.NewFileStore(filepath.Join(t.TempDir(), "feedback.jsonl"))
	s := newServer(t, server.WithFeedback(store))

	rec := postJSON(t, s, "/v1/feedback", feedback.Feedback{CaptureID: "walk-1", Rating: 4, MissedTerms: []string{"sistering"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	rec = postJSON(t, s, "/v1/feedback", feedback.Feedback{CaptureID: "walk-1", Rating: 9})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid rating: status = %d, want 422", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/v1/feedback", "application/json", strings.NewReader(`{"captureId":"a","stars":3}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want 400", rec.Code)
	}

	recs, err := store.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].CaptureID != "walk-1" || recs[0].MissedTerms[0] != "sistering" {
		t.Errorf("stored = %+v", recs)
	}
}

func TestFeedback_NotConfigured(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	rec := postJSON(t, s, "/v1/feedback", feedback.Feedback{CaptureID: "walk-1", Rating: 4})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	var ready health.Flag
	down := &mock.Provider{StartStreamErr: errors.New("dial refused")}
	tr := resilience.NewTranscribers("deepgram[0]", down, resilience.BreakerConfig{MaxFailures: 1})
	s := newServer(t,
		server.WithReadiness(ready.Checker("startup")),
		server.WithTranscriber(tr, stt.StreamConfig{}),
	)

	if rec := do(t, s, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before startup = %d, want 503", rec.Code)
	}

	ready.Set(true)
	if rec := do(t, s, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz after startup = %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	// One failed session opens the only transcriber circuit.
	do(t, s, http.MethodPost, "/v1/analyze/audio", "application/octet-stream", bytes.NewReader([]byte{1}))
	rec := do(t, s, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with open transcriber circuit = %d, want 503", rec.Code)
	}
	checks := decode[struct {
		Checks map[string]string `json:"checks"`
	}](t, rec).Checks
	if !strings.HasPrefix(checks["transcriber"], "fail") {
		t.Errorf("transcriber check = %q", checks["transcriber"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "sitescope_test_total", Help: "test"}))
	s := newServer(t, server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sitescope_test_total") {
		t.Error("metrics output misses the registered counter")
	}

	if rec := do(t, newServer(t), http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d, want 404", rec.Code)
	}
}

func TestNew_RequiresAnalyzer(t *testing.T) {
	t.Parallel()
	if _, err := server.New(nil); err == nil {
		t.Error("expected an error without an analyzer")
	}
}

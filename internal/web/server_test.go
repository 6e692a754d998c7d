package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/roadsafe/roadsafe/internal/log"
	"github.com/roadsafe/roadsafe/internal/rag"
)

// stubRecommender returns a canned recommendation and records questions.
type stubRecommender struct {
	rec       rag.Recommendation
	err       error
	questions []string
}

func (s *stubRecommender) Recommend(_ context.Context, question string) (rag.Recommendation, error) {
	s.questions = append(s.questions, question)
	if s.err != nil {
		return rag.Recommendation{}, s.err
	}
	return s.rec, nil
}

// stubCounter reports a fixed index size.
type stubCounter struct {
	n   int
	err error
}

func (s *stubCounter) Count(context.Context) (int, error) {
	return s.n, s.err
}

func sampleRecommendation() rag.Recommendation {
	return rag.Recommendation{
		Interventions: "Install chevron signs along the curve.",
		Explanation:   "Retroreflective chevrons improve night-time curve perception.",
		Citations:     []rag.Citation{{Source: "IRC:67", Clause: "14.3"}},
	}
}

func newTestServer(t *testing.T, rec Recommender, store Counter) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Recommender: rec,
		Store:       store,
		RateBurst:   1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func TestNewServerRequiresRecommender(t *testing.T) {
	if _, err := NewServer(ServerConfig{Logger: log.NewNop()}); err == nil {
		t.Fatal("NewServer() accepted nil recommender")
	}
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, &stubRecommender{}, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Road Safety Intervention GPT") {
		t.Error("page missing title")
	}
	if !strings.Contains(body, `action="/process"`) {
		t.Error("page missing form action")
	}
	if strings.Contains(body, "Analysis Results") {
		t.Error("empty page shows results section")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestProcessEmptyQuestion(t *testing.T) {
	rec := &stubRecommender{}
	srv := newTestServer(t, rec, nil)

	form := url.Values{"question": {"   "}}
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /process status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Please enter a question.") {
		t.Error("missing empty-question message")
	}
	if len(rec.questions) != 0 {
		t.Errorf("pipeline ran for blank question: %v", rec.questions)
	}
}

func TestProcessRendersRecommendation(t *testing.T) {
	rec := &stubRecommender{rec: sampleRecommendation()}
	srv := newTestServer(t, rec, nil)

	form := url.Values{"question": {"sharp curve with poor night visibility"}}
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	for _, want := range []string{
		"Analysis Results",
		"Recommended Intervention(s)",
		"Install chevron signs along the curve.",
		"Explanation &amp; Justification",
		"Database Reference",
		"Source: IRC:67, Clause: 14.3",
		"sharp curve with poor night visibility",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if len(rec.questions) != 1 || rec.questions[0] != "sharp curve with poor night visibility" {
		t.Errorf("pipeline questions = %v", rec.questions)
	}
}

func TestProcessInsufficientData(t *testing.T) {
	rec := &stubRecommender{rec: rag.Insufficient()}
	srv := newTestServer(t, rec, nil)

	form := url.Values{"question": {"how do I bake bread"}}
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "Insufficient Data") {
		t.Error("missing insufficient-data status")
	}
	if strings.Contains(body, "Database Reference") {
		t.Error("insufficient-data page shows reference box")
	}
}

func TestProcessPipelineError(t *testing.T) {
	rec := &stubRecommender{err: errors.New("model unavailable")}
	srv := newTestServer(t, rec, nil)

	form := url.Values{"question": {"speeding near school"}}
	req := httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /process status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "An error occurred") {
		t.Error("missing error message")
	}
	if strings.Contains(w.Body.String(), "model unavailable") {
		t.Error("internal error leaked to page")
	}
}

func TestAPIRecommend(t *testing.T) {
	rec := &stubRecommender{rec: sampleRecommendation()}
	srv := newTestServer(t, rec, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend",
		strings.NewReader(`{"question":"sharp curve with poor night visibility"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got rag.Recommendation
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Interventions != sampleRecommendation().Interventions {
		t.Errorf("Interventions = %q", got.Interventions)
	}
	if len(got.Citations) != 1 || got.Citations[0].Source != "IRC:67" {
		t.Errorf("Citations = %v", got.Citations)
	}
}

func TestAPIRecommendErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		rec        *stubRecommender
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty question",
			body:       `{"question":"  "}`,
			rec:        &stubRecommender{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "empty_question",
		},
		{
			name:       "invalid JSON",
			body:       `{"question":`,
			rec:        &stubRecommender{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_body",
		},
		{
			name:       "pipeline failure",
			body:       `{"question":"speeding near school"}`,
			rec:        &stubRecommender{err: errors.New("model unavailable")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "recommend_failed",
		},
		{
			name:       "oversized body",
			body:       `{"question":"` + strings.Repeat("a", maxQuestionBytes+1) + `"}`,
			rec:        &stubRecommender{},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "body_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.rec, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/recommend", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubRecommender{}, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d", w.Code)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		store      Counter
		wantStatus int
	}{
		{name: "populated index", store: &stubCounter{n: 42}, wantStatus: http.StatusOK},
		{name: "empty index", store: &stubCounter{n: 0}, wantStatus: http.StatusServiceUnavailable},
		{name: "store error", store: &stubCounter{err: errors.New("down")}, wantStatus: http.StatusServiceUnavailable},
		{name: "no store", store: nil, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubRecommender{}, tt.store)

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("GET /ready status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

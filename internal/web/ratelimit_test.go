package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/roadsafe/roadsafe/internal/log"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(0.001, 3)

	for i := range 3 {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request allowed after burst exhausted")
	}

	// Another IP has its own bucket.
	if !rl.allow("10.0.0.2") {
		t.Error("fresh IP denied")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
		{
			name:       "proxy headers ignored when untrusted",
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			want:       "192.0.2.1",
		},
		{
			name:       "x-real-ip trusted",
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.7"},
			trustProxy: true,
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for first entry",
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			trustProxy: true,
			want:       "203.0.113.7",
		},
		{
			name:       "invalid header falls back to remote addr",
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

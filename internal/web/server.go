// Package web serves the intervention tool over HTTP: an HTML form page,
// a JSON API, and health probes. Handlers depend on the Recommender
// interface, not the concrete pipeline, so they are testable without a
// model or a vector store.
package web

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the HTTP server.
type ServerConfig struct {
	Logger      *slog.Logger
	Recommender Recommender // Required
	Store       Counter     // Optional: nil degrades /ready to 503
	RateRPS     float64     // Token refill per IP per second (0 = default 1)
	RateBurst   int         // Rate limiter burst size per IP (0 = default 30)
	TrustProxy  bool        // Trust X-Real-IP/X-Forwarded-For headers
}

// Server is the HTTP server for the intervention tool.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Recommender == nil {
		return nil, errors.New("recommender is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages, err := newPagesHandler(cfg.Recommender, logger)
	if err != nil {
		return nil, err
	}
	api := &apiHandler{rec: cfg.Recommender, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", pages.index)
	mux.HandleFunc("POST /process", pages.process)
	mux.HandleFunc("POST /api/v1/recommend", api.recommend)

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> RateLimit -> Routes
	// RequestID sits before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack so rate limiting never
	// starves the orchestrator.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Store, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

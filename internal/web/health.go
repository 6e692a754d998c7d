package web

import (
	"context"
	"log/slog"
	"net/http"
)

// Counter reports the size of the knowledge index, used by readiness probes.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// health is a liveness probe. Returns 200 as long as the process serves.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// readiness reports whether the knowledge index is reachable and populated.
// An empty index means every answer would be the insufficient-data notice,
// so the instance is not ready to serve.
func readiness(store Counter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no store"}, logger)
			return
		}

		n, err := store.Count(r.Context())
		if err != nil {
			logger.Error("readiness check", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"}, logger)
			return
		}
		if n == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "empty index", "documents": 0}, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "documents": n}, logger)
	}
}

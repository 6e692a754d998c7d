package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roadsafe/roadsafe/internal/rag"
)

// recommendRequest is the JSON API request body.
type recommendRequest struct {
	Question string `json:"question"`
}

// apiHandler serves the JSON recommendation endpoint.
type apiHandler struct {
	rec    Recommender
	logger *slog.Logger
}

// recommend handles POST /api/v1/recommend.
func (h *apiHandler) recommend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBytes)

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty", h.logger)
		return
	}

	rec, err := h.rec.Recommend(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty", h.logger)
			return
		}
		h.logger.Error("recommending", "error", err)
		writeError(w, http.StatusInternalServerError, "recommend_failed", "failed to analyze the issue", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, rec, h.logger)
}

package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roadsafe/roadsafe/internal/rag"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxQuestionBytes bounds the accepted issue description. Anything larger
// is noise or abuse, not a road description.
const maxQuestionBytes = 8 << 10

// insufficientDataTitle heads the first output box when no relevant
// intervention was found.
const insufficientDataTitle = "Road Safety Intervention GPT Status: Insufficient Data"

// pageData drives the form page template. The three output fields map onto
// the result boxes; all empty means no analysis has run yet.
type pageData struct {
	Question     string
	Intervention string
	Explanation  string
	Reference    string
}

// pagesHandler serves the HTML form and the form-post analysis flow.
type pagesHandler struct {
	tmpl   *template.Template
	rec    Recommender
	logger *slog.Logger
}

func newPagesHandler(rec Recommender, logger *slog.Logger) (*pagesHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &pagesHandler{tmpl: tmpl, rec: rec, logger: logger}, nil
}

// index renders the empty form.
func (h *pagesHandler) index(w http.ResponseWriter, _ *http.Request) {
	h.render(w, pageData{})
}

// process runs the recommendation pipeline on the submitted issue and
// re-renders the page with the result boxes filled in.
func (h *pagesHandler) process(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBytes)
	if err := r.ParseForm(); err != nil {
		h.render(w, pageData{Intervention: "Please enter a shorter question."})
		return
	}

	question := strings.TrimSpace(r.PostFormValue("question"))
	if question == "" {
		h.render(w, pageData{Intervention: "Please enter a question."})
		return
	}

	rec, err := h.rec.Recommend(r.Context(), question)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			h.render(w, pageData{Intervention: "Please enter a question."})
			return
		}
		h.logger.Error("processing question", "error", err)
		h.render(w, pageData{
			Question:     question,
			Intervention: "An error occurred while analyzing the issue. Please try again.",
		})
		return
	}

	h.render(w, toPageData(question, rec))
}

// toPageData maps a recommendation onto the three output boxes.
func toPageData(question string, rec rag.Recommendation) pageData {
	if rec.InsufficientData {
		return pageData{
			Question:     question,
			Intervention: insufficientDataTitle + "\n\n" + rec.Explanation,
		}
	}

	refs := make([]string, len(rec.Citations))
	for i, c := range rec.Citations {
		refs[i] = "Source: " + c.Source + ", Clause: " + c.Clause
	}

	return pageData{
		Question:     question,
		Intervention: rec.Interventions,
		Explanation:  rec.Explanation,
		Reference:    strings.Join(refs, "\n"),
	}
}

func (h *pagesHandler) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		h.logger.Error("rendering page", "error", err)
	}
}

// Recommender is the part of the recommendation pipeline the web layer needs.
type Recommender interface {
	Recommend(ctx context.Context, question string) (rag.Recommendation, error)
}

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/roadsafe/roadsafe/internal/knowledge"
)

// Searcher is the retrieval half of the knowledge store the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Pipeline runs the staged recommendation workflow:
// retrieve, grade, then generate or fall back.
type Pipeline struct {
	g           *genkit.Genkit
	model       string // full Genkit model name, e.g. "googleai/gemini-2.5-flash"
	temperature float32
	store       Searcher
	topK        int
	logger      *slog.Logger

	// Stage functions are fields so tests can exercise the routing logic
	// without a live model.
	gradeFn    func(ctx context.Context, question, contextText string) (string, error)
	generateFn func(ctx context.Context, question, contextText string) (Recommendation, error)
}

// New creates a Pipeline over the given store. model must be the full
// provider-prefixed model name. topK values below 1 fall back to the
// store default.
func New(g *genkit.Genkit, model string, temperature float32, store Searcher, topK int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		g:           g,
		model:       model,
		temperature: temperature,
		store:       store,
		topK:        topK,
		logger:      logger,
	}
	p.gradeFn = p.grade
	p.generateFn = p.generate
	return p
}

// Recommend answers a described road safety issue. A blank question is
// rejected before any retrieval. Grading failures are treated as an
// irrelevant grade rather than an error so a flaky model degrades to the
// fallback notice instead of a 500.
func (p *Pipeline) Recommend(ctx context.Context, question string) (Recommendation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Recommendation{}, ErrEmptyQuestion
	}

	var opts []knowledge.SearchOption
	if p.topK > 0 {
		opts = append(opts, knowledge.WithTopK(p.topK))
	}
	results, err := p.store.Search(ctx, question, opts...)
	if err != nil {
		return Recommendation{}, fmt.Errorf("retrieving context: %w", err)
	}
	if len(results) == 0 {
		p.logger.Info("no context retrieved", "question_len", len(question))
		return Insufficient(), nil
	}

	grade, err := p.gradeFn(ctx, question, gradingContext(results))
	if err != nil {
		p.logger.Warn("grading failed, treating context as irrelevant", "error", err)
		grade = GradeIrrelevant
	}
	p.logger.Debug("graded retrieved context", "grade", grade, "results", len(results))
	if grade != GradeRelevant {
		return Insufficient(), nil
	}

	rec, err := p.generateFn(ctx, question, generationContext(results))
	if err != nil {
		return Recommendation{}, fmt.Errorf("generating recommendation: %w", err)
	}
	return rec, nil
}

// generateOptions returns the shared Generate options for both stages.
// Gemini models get an explicit temperature; low values keep grading strict
// and recommendations reproducible.
func (p *Pipeline) generateOptions() []ai.GenerateOption {
	opts := []ai.GenerateOption{ai.WithModelName(p.model)}
	if strings.HasPrefix(p.model, "googleai/") {
		opts = append(opts, ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(p.temperature),
		}))
	}
	return opts
}

// grade asks the model whether the retrieved context addresses the question.
// Anything other than a clean "relevant" counts as irrelevant.
func (p *Pipeline) grade(ctx context.Context, question, contextText string) (string, error) {
	opts := append(p.generateOptions(),
		ai.WithSystem(graderSystemPrompt),
		ai.WithPrompt(graderPromptFormat, question, contextText),
		ai.WithOutputType(gradeOutput{}),
	)
	resp, err := genkit.Generate(ctx, p.g, opts...)
	if err != nil {
		return "", err
	}

	var out gradeOutput
	if err := resp.Output(&out); err != nil {
		return "", err
	}

	grade := strings.ToLower(strings.TrimSpace(out.Relevance))
	if grade != GradeRelevant {
		grade = GradeIrrelevant
	}
	return grade, nil
}

// generate produces the cited recommendation from graded context.
func (p *Pipeline) generate(ctx context.Context, question, contextText string) (Recommendation, error) {
	opts := append(p.generateOptions(),
		ai.WithSystem(generatorSystemPrompt),
		ai.WithPrompt(generatorPromptFormat, contextText, question),
		ai.WithOutputType(generationOutput{}),
	)
	resp, err := genkit.Generate(ctx, p.g, opts...)
	if err != nil {
		return Recommendation{}, err
	}

	var out generationOutput
	if err := resp.Output(&out); err != nil {
		return Recommendation{}, err
	}

	return Recommendation{
		Interventions: out.Interventions,
		Explanation:   out.Explanation,
		Citations:     out.Citations,
	}, nil
}

// gradingContext renders retrieved documents for the grading stage. The
// grader only needs the intervention text, not the citations.
func gradingContext(results []knowledge.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Intervention Content:\n%s\n", r.Document.Content)
	}
	return strings.Join(parts, "\n---\n")
}

// generationContext renders retrieved documents for the generation stage,
// each with the citation the answer must quote.
func generationContext(results []knowledge.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Intervention Suggestion:\n%s\nReference: %s",
			r.Document.Content, reference(r.Document))
	}
	return strings.Join(parts, "\n---\n")
}

// reference renders a document's citation line from its metadata.
func reference(doc knowledge.Document) string {
	code := doc.Metadata[MetaCode]
	if code == "" {
		code = "N/A"
	}
	clause := doc.Metadata[MetaClause]
	if clause == "" {
		clause = "N/A"
	}
	return fmt.Sprintf("Source: %s, Clause: %s", code, clause)
}

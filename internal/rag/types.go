// Package rag implements the recommendation pipeline over the intervention
// knowledge base: retrieve candidate interventions, grade their relevance to
// the reported road safety issue, then either generate a cited recommendation
// or return the insufficient-data notice.
package rag

import "errors"

// ErrEmptyQuestion indicates the submitted road safety issue was blank.
var ErrEmptyQuestion = errors.New("rag: empty question")

// Relevance grades produced by the grading stage.
const (
	GradeRelevant   = "relevant"
	GradeIrrelevant = "irrelevant"
)

// Citation points at the knowledge base entry backing a recommendation.
type Citation struct {
	Source string `json:"source"` // source document code, e.g. "IRC:67"
	Clause string `json:"clause"` // clause within the source document
}

// Recommendation is the pipeline's answer to a road safety issue.
// When InsufficientData is set no intervention was found and Explanation
// carries the guidance message instead of a justification.
type Recommendation struct {
	Interventions    string     `json:"interventions"`
	Explanation      string     `json:"explanation"`
	Citations        []Citation `json:"citations,omitempty"`
	InsufficientData bool       `json:"insufficientData,omitempty"`
}

// Insufficient returns the fallback recommendation used when retrieval comes
// back empty or grading rejects the retrieved context.
func Insufficient() Recommendation {
	return Recommendation{
		Explanation:      InsufficientDataMessage,
		InsufficientData: true,
	}
}

// gradeOutput is the structured output schema for the grading stage.
type gradeOutput struct {
	Relevance string `json:"relevance"`
}

// generationOutput is the structured output schema for the generation stage.
// It is kept separate from Recommendation so the model never sees the
// InsufficientData field.
type generationOutput struct {
	Interventions string     `json:"interventions"`
	Explanation   string     `json:"explanation"`
	Citations     []Citation `json:"citations"`
}

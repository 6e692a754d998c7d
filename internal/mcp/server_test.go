package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/roadsafe/roadsafe/internal/knowledge"
	"github.com/roadsafe/roadsafe/internal/log"
	"github.com/roadsafe/roadsafe/internal/rag"
)

type stubRecommender struct {
	rec rag.Recommendation
	err error
}

func (s *stubRecommender) Recommend(context.Context, string) (rag.Recommendation, error) {
	return s.rec, s.err
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return nil, nil
}

func TestNewServerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing name", cfg: Config{Version: "1.0.0", Recommender: &stubRecommender{}}},
		{name: "missing version", cfg: Config{Name: "roadsafe", Recommender: &stubRecommender{}}},
		{name: "missing recommender", cfg: Config{Name: "roadsafe", Version: "1.0.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewServer(tt.cfg); err == nil {
				t.Error("NewServer() accepted invalid config")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(Config{
		Name:        "roadsafe",
		Version:     "1.0.0",
		Recommender: &stubRecommender{},
		Searcher:    stubSearcher{},
		Logger:      log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if srv.mcpServer == nil {
		t.Fatal("underlying MCP server is nil")
	}
}

func TestFormatRecommendation(t *testing.T) {
	rec := rag.Recommendation{
		Interventions: "Install chevron signs.",
		Explanation:   "Improves night-time curve perception.",
		Citations: []rag.Citation{
			{Source: "IRC:67", Clause: "14.3"},
			{Source: "IRC:35", Clause: "4.2"},
		},
	}

	got := formatRecommendation(rec)
	for _, want := range []string{
		"Recommended Intervention(s):\nInstall chevron signs.",
		"Explanation & Justification:\nImproves night-time curve perception.",
		"Source: IRC:67, Clause: 14.3",
		"Source: IRC:35, Clause: 4.2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatRecommendation() missing %q:\n%s", want, got)
		}
	}
}

func TestFormatRecommendationInsufficient(t *testing.T) {
	got := formatRecommendation(rag.Insufficient())
	if !strings.HasPrefix(got, "Status: Insufficient Data") {
		t.Errorf("formatRecommendation() = %q, want insufficient-data status", got)
	}
	if strings.Contains(got, "Database Reference") {
		t.Error("insufficient-data output includes references")
	}
}

func TestFormatHits(t *testing.T) {
	if got := formatHits(nil); got != "No matching interventions found." {
		t.Errorf("formatHits(nil) = %q", got)
	}

	hits := []SearchHit{
		{Content: "issue: faded crossing", Source: "IRC:35", Clause: "4.2", Similarity: 0.91},
		{Content: "issue: dark curve", Source: "IRC:67", Clause: "14.3", Similarity: 0.84},
	}
	got := formatHits(hits)
	if !strings.Contains(got, "Source: IRC:35, Clause: 4.2 (similarity 0.91)") {
		t.Errorf("formatHits() missing first citation:\n%s", got)
	}
	if !strings.Contains(got, "\n---\n") {
		t.Error("formatHits() missing separator")
	}
}

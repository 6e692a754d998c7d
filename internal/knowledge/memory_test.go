package knowledge

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/roadsafe/roadsafe/internal/log"
)

// mockEmbedder implements ai.Embedder with fixed vectors per text.
type mockEmbedder struct {
	vectors   map[string][]float32 // text -> vector
	fallback  []float32
	embedErr  error
	callCount int
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	var text string
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		text = req.Input[0].Content[0].Text
	}

	vector, ok := m.vectors[text]
	if !ok {
		vector = m.fallback
	}
	if vector == nil {
		vector = []float32{1, 0, 0}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: vector}},
	}, nil
}

func seedMemory(t *testing.T, m *Memory, docs []Document) {
	t.Helper()
	for _, doc := range docs {
		if err := m.Add(context.Background(), doc); err != nil {
			t.Fatalf("Add(%s) = %v", doc.ID, err)
		}
	}
}

func TestMemorySearchOrdering(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float32{
		"guardrails": {1, 0, 0},
		"speed hump": {0, 1, 0},
		"chevrons":   {0.9, 0.1, 0},
		"query":      {1, 0, 0},
	}}
	store := NewMemory(embedder, log.NewNop())
	seedMemory(t, store, []Document{
		{ID: "a", Content: "guardrails", Metadata: map[string]string{"code": "IRC:103"}},
		{ID: "b", Content: "speed hump", Metadata: map[string]string{"code": "IRC:99"}},
		{ID: "c", Content: "chevrons", Metadata: map[string]string{"code": "IRC:67"}},
	})

	results, err := store.Search(context.Background(), "query", WithTopK(2))
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Document.ID != "a" {
		t.Errorf("best match = %q, want a", results[0].Document.ID)
	}
	if results[1].Document.ID != "c" {
		t.Errorf("second match = %q, want c", results[1].Document.ID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not ordered by similarity")
	}
}

func TestMemorySearchFilter(t *testing.T) {
	embedder := &mockEmbedder{}
	store := NewMemory(embedder, log.NewNop())
	seedMemory(t, store, []Document{
		{ID: "a", Content: "x", Metadata: map[string]string{"code": "IRC:103"}},
		{ID: "b", Content: "y", Metadata: map[string]string{"code": "IRC:99"}},
	})

	results, err := store.Search(context.Background(), "q", WithFilter("code", "IRC:99"))
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "b" {
		t.Errorf("filtered results = %+v, want only b", results)
	}
}

func TestMemoryAddIsIdempotent(t *testing.T) {
	embedder := &mockEmbedder{}
	store := NewMemory(embedder, log.NewNop())
	doc := Document{ID: "a", Content: "guardrails", CreateAt: time.Now()}

	// Rebuilding the index from an unchanged CSV re-adds identical
	// documents; the retrievable set must not change.
	seedMemory(t, store, []Document{doc, doc, doc})

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after re-adding same document, want 1", count)
	}
}

func TestMemorySearchEmbedError(t *testing.T) {
	embedder := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	store := NewMemory(embedder, log.NewNop())

	if _, err := store.Search(context.Background(), "q"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchConfigDefaults(t *testing.T) {
	cfg := buildSearchConfig(nil)
	if cfg.topK != 4 {
		t.Errorf("default topK = %d, want 4", cfg.topK)
	}
	if cfg.timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", cfg.timeout)
	}

	cfg = buildSearchConfig([]SearchOption{WithTopK(-1), WithTimeout(-time.Second)})
	if cfg.topK != 4 || cfg.timeout != 10*time.Second {
		t.Error("invalid option values must not override defaults")
	}
}

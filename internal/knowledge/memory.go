package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// Memory is an in-process vector store. It holds the whole knowledge base in
// RAM and searches by exhaustive cosine similarity, which is plenty for a
// knowledge base of a few thousand clauses. The index is rebuilt from the
// CSV at startup, so nothing is persisted.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	embedder ai.Embedder
	logger   *slog.Logger
}

type memoryEntry struct {
	doc    Document
	vector []float32
}

// NewMemory creates an empty in-memory store.
func NewMemory(embedder ai.Embedder, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		entries:  make(map[string]memoryEntry),
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds doc and stores it. Re-adding a document with the same ID
// replaces the previous entry, so rebuilding from an unchanged CSV is a
// no-op in terms of retrievable content.
func (m *Memory) Add(ctx context.Context, doc Document) error {
	vector, err := embedText(ctx, m.embedder, doc.Content)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[doc.ID] = memoryEntry{doc: doc, vector: vector}
	m.mu.Unlock()

	m.logger.Debug("indexed document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search embeds the query and returns the topK most similar documents.
func (m *Memory) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryVector, err := embedText(ctx, m.embedder, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("query embedding timeout")
		}
		return nil, err
	}

	m.mu.RLock()
	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if cfg.filter != nil && !matchesFilter(e.doc.Metadata, cfg.filter) {
			continue
		}
		results = append(results, Result{
			Document:   e.doc,
			Similarity: float32(cosineSimilarity(queryVector, e.vector)),
		})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		// Stable order for equal scores keeps searches reproducible.
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > cfg.topK {
		results = results[:cfg.topK]
	}
	return results, nil
}

// Count reports the number of indexed documents.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close is a no-op for the in-memory store.
func (*Memory) Close() error { return nil }

// cosineSimilarity computes the cosine of the angle between a and b.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package knowledge

import (
	"context"
	"time"
)

// Document is one embedded entry of the intervention knowledge base.
// Metadata carries the citation fields (source code, clause, serial).
type Document struct {
	ID       string            // deterministic, derived from the CSV row
	Content  string            // embedded text
	Metadata map[string]string // citation metadata
	CreateAt time.Time         // indexing timestamp
}

// Result is a single search hit with its cosine similarity score.
type Result struct {
	Document   Document
	Similarity float32 // 0..1, higher is closer
}

// Store is the vector index over the knowledge base. Implementations must be
// safe for concurrent use; the index is read-mostly after startup.
type Store interface {
	// Add embeds and upserts a document, keyed by Document.ID.
	Add(ctx context.Context, doc Document) error

	// Search returns the documents most similar to query, best first.
	Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error)

	// Count reports the number of indexed documents.
	Count(ctx context.Context) (int, error)

	// Close releases store resources.
	Close() error
}

// SearchOption configures search behavior using functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results. Default is 4.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter restricts results to documents whose metadata contains the
// given key/value pair. Multiple filters combine with AND.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout bounds the search, embedding call included. Default 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    4,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// matchesFilter reports whether metadata satisfies every filter entry.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

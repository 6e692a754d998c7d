package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Postgres is a pgvector-backed store. Embeddings live in the interventions
// table (see db/migrations) and search uses the cosine distance operator, so
// the index survives restarts and can be shared between processes.
type Postgres struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewPostgres creates a store on top of an existing connection pool.
// The pool's lifecycle is managed by the caller.
func NewPostgres(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, embedder: embedder, logger: logger}
}

// Add embeds doc and upserts it keyed on its deterministic ID.
func (p *Postgres) Add(ctx context.Context, doc Document) error {
	vector, err := embedText(ctx, p.embedder, doc.Content)
	if err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	createdAt := doc.CreateAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const upsert = `
		INSERT INTO interventions (id, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`

	embedding := pgvector.NewVector(vector)
	if _, err := p.pool.Exec(ctx, upsert, doc.ID, doc.Content, metadataJSON, embedding, createdAt); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	p.logger.Debug("indexed document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search embeds the query and returns the topK nearest documents by cosine
// distance. Filters match on the metadata JSONB with the containment
// operator; the filter JSON is always produced by json.Marshal, never from
// raw user input.
func (p *Postgres) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryVector, err := embedText(ctx, p.embedder, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("query embedding timeout")
		}
		return nil, err
	}
	embedding := pgvector.NewVector(queryVector)

	var rows pgx.Rows

	if len(cfg.filter) > 0 {
		filterJSON, err := json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
		const searchFiltered = `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM interventions
			WHERE metadata @> $2
			ORDER BY embedding <=> $1
			LIMIT $3`
		r, err := p.pool.Query(ctx, searchFiltered, embedding, filterJSON, cfg.topK)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		rows = r
	} else {
		const search = `
			SELECT id, content, metadata, created_at,
			       1 - (embedding <=> $1) AS similarity
			FROM interventions
			ORDER BY embedding <=> $1
			LIMIT $2`
		r, err := p.pool.Query(ctx, search, embedding, cfg.topK)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		rows = r
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &doc.CreateAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			p.logger.Warn("unparseable metadata", "document_id", doc.ID, "error", err)
			doc.Metadata = make(map[string]string)
		}
		results = append(results, Result{Document: doc, Similarity: float32(similarity)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	return results, nil
}

// Count reports the number of indexed documents.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM interventions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(count), nil
}

// DeleteStale removes documents whose IDs are not in keep. Used after an
// index rebuild so entries for deleted CSV rows do not linger.
func (p *Postgres) DeleteStale(ctx context.Context, keep []string) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM interventions WHERE NOT (id = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("deleting stale documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close is a no-op: the pool is owned by the caller.
func (*Postgres) Close() error { return nil }

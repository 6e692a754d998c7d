package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roadsafe/roadsafe/internal/dataset"
	"github.com/roadsafe/roadsafe/internal/knowledge"
)

// Metadata keys attached to indexed documents. The generation stage reads
// MetaCode and MetaClause back out to build citation lines.
const (
	MetaSerial = "serial"
	MetaCode   = "code"
	MetaClause = "clause"
)

// staleDeleter is implemented by stores that persist documents across runs
// and can drop entries no longer present in the knowledge base.
type staleDeleter interface {
	DeleteStale(ctx context.Context, keep []string) (int, error)
}

// Index embeds and upserts every record into the store. Record IDs are
// deterministic, so re-indexing an unchanged CSV is idempotent. If the store
// persists across runs, documents absent from records are deleted afterwards.
// Returns the number of indexed documents.
func Index(ctx context.Context, store knowledge.Store, records []dataset.Record, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		doc := toDocument(rec)
		if err := store.Add(ctx, doc); err != nil {
			return 0, fmt.Errorf("indexing record %s (serial %q): %w", doc.ID, rec.Serial, err)
		}
		ids = append(ids, doc.ID)
	}

	var stale int
	if sd, ok := store.(staleDeleter); ok {
		var err error
		stale, err = sd.DeleteStale(ctx, ids)
		if err != nil {
			return 0, fmt.Errorf("deleting stale documents: %w", err)
		}
	}

	logger.Info("knowledge base indexed",
		"records", len(records),
		"stale_removed", stale,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return len(records), nil
}

// toDocument converts a knowledge base record into its indexed form.
func toDocument(rec dataset.Record) knowledge.Document {
	return knowledge.Document{
		ID:      rec.ID(),
		Content: rec.Content,
		Metadata: map[string]string{
			MetaSerial: rec.Serial,
			MetaCode:   rec.Code,
			MetaClause: rec.Clause,
		},
		CreateAt: time.Now(),
	}
}

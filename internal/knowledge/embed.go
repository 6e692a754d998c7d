package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// embedText generates the embedding vector for a single text.
func embedText(ctx context.Context, embedder ai.Embedder, text string) ([]float32, error) {
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

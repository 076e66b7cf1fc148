package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"diabuddy/internal/config"
)

// NewEmbedder builds the embedding client both the retriever and the ingest
// writer share, so queries and stored chunks live in the same vector space.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	provCfg, ok := cfg.Providers["openai"]
	if !ok {
		return nil, fmt.Errorf("openai provider must be configured for embeddings")
	}
	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  provCfg.APIKey,
		Model:   cfg.Chain.EmbeddingModel,
		BaseURL: provCfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}

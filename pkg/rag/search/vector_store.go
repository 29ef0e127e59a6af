package search

import (
	"context"
	"fmt"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/unitofwork"
	"socialsync-be/pkg/embedding"
)

// VectorStore answers queries from the pgvector event index.
type VectorStore struct {
	embeddingProvider embedding.EmbeddingProvider
	uowFactory        unitofwork.RepositoryFactory
	logger            logger.ILogger
}

func NewVectorStore(
	embeddingProvider embedding.EmbeddingProvider,
	uowFactory unitofwork.RepositoryFactory,
	logger logger.ILogger,
) *VectorStore {
	return &VectorStore{
		embeddingProvider: embeddingProvider,
		uowFactory:        uowFactory,
		logger:            logger,
	}
}

func (v *VectorStore) Search(ctx context.Context, query string, k int) ([]string, error) {
	embeddingRes, err := v.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding generation: %v", ErrSearch, err)
	}

	uow := v.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.EventEmbeddingRepository().SearchSimilarWithScore(ctx, embeddingRes.Embedding.Values, k)
	if err != nil {
		v.logger.Error("Retrieval", "Vector search failed", map[string]interface{}{
			"query": query,
			"k":     k,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: vector search: %v", ErrSearch, err)
	}

	blobs := make([]string, len(scored))
	for i, s := range scored {
		blobs[i] = s.Embedding.Document
	}

	top := 0.0
	if len(scored) > 0 {
		top = scored[0].Similarity
	}
	v.logger.Debug("Retrieval", "Vector search done", map[string]interface{}{
		"query":     query,
		"k":         k,
		"returned":  len(blobs),
		"top_score": top,
	})

	return blobs, nil
}

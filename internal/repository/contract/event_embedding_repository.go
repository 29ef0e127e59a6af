package contract

import (
	"context"

	"socialsync-be/internal/entity"
	"socialsync-be/internal/repository/specification"
)

// ScoredEventEmbedding wraps EventEmbedding with its similarity score
type ScoredEventEmbedding struct {
	Embedding  *entity.EventEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type EventEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.EventEmbedding) error
	DeleteBySource(ctx context.Context, source string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.EventEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore returns the nearest embeddings, best first
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*ScoredEventEmbedding, error)
}

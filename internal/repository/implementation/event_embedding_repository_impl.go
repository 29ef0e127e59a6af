package implementation

import (
	"context"

	"socialsync-be/internal/entity"
	"socialsync-be/internal/mapper"
	"socialsync-be/internal/model"
	"socialsync-be/internal/repository/contract"
	"socialsync-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.EventEmbeddingMapper
}

func NewEventEmbeddingRepository(db *gorm.DB) contract.EventEmbeddingRepository {
	return &EventEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewEventEmbeddingMapper(),
	}
}

// CreateBulk skips listings whose fingerprint is already indexed.
func (r *EventEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.EventEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.EventEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "fingerprint"}}, DoNothing: true}).
		Create(models).Error
	if err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *EventEmbeddingRepositoryImpl) DeleteBySource(ctx context.Context, source string) error {
	return r.db.WithContext(ctx).Unscoped().Where("source = ?", source).Delete(&model.EventEmbedding{}).Error
}

func (r *EventEmbeddingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.EventEmbedding, error) {
	var models []*model.EventEmbedding
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *EventEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.EventEmbedding{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

// SearchSimilarWithScore ranks by cosine similarity. Ties break on id so equal
// inputs always produce the same order.
func (r *EventEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int) ([]*contract.ScoredEventEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	type result struct {
		model.EventEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("event_embeddings").
		Select("event_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("event_embeddings.deleted_at IS NULL").
		Order("similarity DESC").
		Order("id ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredEventEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredEventEmbedding{
			Embedding:  r.mapper.ToEntity(&res.EventEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

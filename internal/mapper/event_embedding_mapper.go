package mapper

import (
	"socialsync-be/internal/entity"
	"socialsync-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type EventEmbeddingMapper struct{}

func NewEventEmbeddingMapper() *EventEmbeddingMapper {
	return &EventEmbeddingMapper{}
}

func (m *EventEmbeddingMapper) ToEntity(e *model.EventEmbedding) *entity.EventEmbedding {
	if e == nil {
		return nil
	}

	return &entity.EventEmbedding{
		Id:             e.Id,
		Document:       e.Document,
		Fingerprint:    e.Fingerprint,
		Source:         e.Source,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAtToEntity(e.UpdatedAt),
		DeletedAt:      deletedAtToEntity(e.DeletedAt),
		IsDeleted:      e.DeletedAt.Valid,
	}
}

func (m *EventEmbeddingMapper) ToModel(e *entity.EventEmbedding) *model.EventEmbedding {
	if e == nil {
		return nil
	}

	return &model.EventEmbedding{
		Id:             e.Id,
		Document:       e.Document,
		Fingerprint:    e.Fingerprint,
		Source:         e.Source,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAtToModel(e.UpdatedAt),
		DeletedAt:      deletedAtToModel(e.DeletedAt, e.IsDeleted),
	}
}

func (m *EventEmbeddingMapper) ToEntities(embeddings []*model.EventEmbedding) []*entity.EventEmbedding {
	entities := make([]*entity.EventEmbedding, len(embeddings))
	for i, e := range embeddings {
		entities[i] = m.ToEntity(e)
	}
	return entities
}

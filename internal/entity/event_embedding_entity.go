package entity

import (
	"time"

	"github.com/google/uuid"
)

// EventEmbedding is one indexed event listing and its vector.
type EventEmbedding struct {
	Id             uuid.UUID
	Document       string
	Fingerprint    string
	Source         string
	EmbeddingValue []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}

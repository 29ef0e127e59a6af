package contract

import (
	"context"

	"socialsync-be/internal/entity"
	"socialsync-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	CreateBulk(ctx context.Context, messages []*entity.ChatMessage) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// MaxSeq returns the highest stored sequence number, or -1 when the session has none
	MaxSeq(ctx context.Context, sessionId uuid.UUID) (int, error)
}

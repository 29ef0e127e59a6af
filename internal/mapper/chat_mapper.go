package mapper

import (
	"encoding/json"
	"time"

	"socialsync-be/internal/entity"
	"socialsync-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	return &entity.ChatSession{
		Id:         s.Id,
		SessionKey: s.SessionKey,
		Flow:       s.Flow,
		Phase:      s.Phase,
		Tribe:      s.Tribe,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  updatedAtToEntity(s.UpdatedAt),
		DeletedAt:  deletedAtToEntity(s.DeletedAt),
		IsDeleted:  s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	return &model.ChatSession{
		Id:         s.Id,
		SessionKey: s.SessionKey,
		Flow:       s.Flow,
		Phase:      s.Phase,
		Tribe:      s.Tribe,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  updatedAtToModel(s.UpdatedAt),
		DeletedAt:  deletedAtToModel(s.DeletedAt, s.IsDeleted),
	}
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var events json.RawMessage
	if len(msg.Events) > 0 {
		events = json.RawMessage(msg.Events)
	}

	return &entity.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Seq:           msg.Seq,
		Role:          msg.Role,
		Chat:          msg.Chat,
		Events:        events,
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     updatedAtToEntity(msg.UpdatedAt),
		DeletedAt:     deletedAtToEntity(msg.DeletedAt),
		IsDeleted:     msg.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	var events datatypes.JSON
	if len(msg.Events) > 0 {
		events = datatypes.JSON(msg.Events)
	}

	return &model.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Seq:           msg.Seq,
		Role:          msg.Role,
		Chat:          msg.Chat,
		Events:        events,
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     updatedAtToModel(msg.UpdatedAt),
		DeletedAt:     deletedAtToModel(msg.DeletedAt, msg.IsDeleted),
	}
}

func (m *ChatMapper) ChatMessagesToEntities(msgs []*model.ChatMessage) []*entity.ChatMessage {
	entities := make([]*entity.ChatMessage, len(msgs))
	for i, msg := range msgs {
		entities[i] = m.ChatMessageToEntity(msg)
	}
	return entities
}

func updatedAtToEntity(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func updatedAtToModel(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func deletedAtToEntity(d gorm.DeletedAt) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func deletedAtToModel(t *time.Time, isDeleted bool) gorm.DeletedAt {
	if t != nil {
		return gorm.DeletedAt{Time: *t, Valid: true}
	}
	if isDeleted {
		return gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	return gorm.DeletedAt{}
}

package service

import (
	"context"
	"encoding/json"

	"socialsync-be/internal/dto"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/specification"
	"socialsync-be/internal/repository/unitofwork"
)

type IArchiveService interface {
	History(ctx context.Context, request *dto.ArchiveHistoryRequest) (*dto.ArchiveHistoryResponse, error)
}

type archiveService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewArchiveService(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IArchiveService {
	return &archiveService{
		uowFactory: uowFactory,
		logger:     logger,
	}
}

// History lists the archived conversations of a session key. Every reset starts a
// new archived conversation, so one key can own several.
func (s *archiveService) History(ctx context.Context, request *dto.ArchiveHistoryRequest) (*dto.ArchiveHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	byKey := specification.BySessionKey{SessionKey: request.SessionKey}

	total, err := uow.ChatSessionRepository().Count(ctx, byKey)
	if err != nil {
		return nil, err
	}

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		byKey,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: request.PerPage, Offset: (request.Page - 1) * request.PerPage},
	)
	if err != nil {
		return nil, err
	}

	response := &dto.ArchiveHistoryResponse{
		SessionKey: request.SessionKey,
		Page:       request.Page,
		PerPage:    request.PerPage,
		Total:      total,
		Sessions:   make([]dto.ArchivedSessionDTO, 0, len(sessions)),
	}

	for _, chatSession := range sessions {
		messages, err := uow.ChatMessageRepository().FindAll(ctx,
			specification.ByChatSessionID{ChatSessionID: chatSession.Id},
			specification.OrderBy{Field: "seq"},
		)
		if err != nil {
			return nil, err
		}

		item := dto.ArchivedSessionDTO{
			Id:        chatSession.Id.String(),
			Flow:      chatSession.Flow,
			Phase:     chatSession.Phase,
			Tribe:     chatSession.Tribe,
			Messages:  make([]dto.ArchivedMessageDTO, 0, len(messages)),
			CreatedAt: chatSession.CreatedAt,
			UpdatedAt: chatSession.UpdatedAt,
		}
		for _, msg := range messages {
			archived := dto.ArchivedMessageDTO{
				Seq:       msg.Seq,
				Role:      msg.Role,
				Content:   msg.Chat,
				CreatedAt: msg.CreatedAt,
			}
			if len(msg.Events) > 0 {
				if err := json.Unmarshal(msg.Events, &archived.Events); err != nil {
					s.logger.Warn("Archive", "Skipping unreadable archived events", map[string]interface{}{
						"message_id": msg.Id.String(),
						"error":      err.Error(),
					})
				}
			}
			item.Messages = append(item.Messages, archived)
		}
		response.Sessions = append(response.Sessions, item)
	}

	return response, nil
}

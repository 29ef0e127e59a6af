package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"socialsync-be/internal/dto"
	"socialsync-be/internal/entity"
	"socialsync-be/internal/observability"
	"socialsync-be/internal/pkg/logger"
	"socialsync-be/internal/repository/specification"
	"socialsync-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	attemptsMetadataKey = "archive_attempts"
	maxArchiveAttempts  = 5
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// archiveConsumer writes committed transcript turns to the chat archive tables.
type archiveConsumer struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	metrics    *observability.Metrics
	logger     logger.ILogger
	backoff    time.Duration
}

func NewArchiveConsumer(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	metrics *observability.Metrics,
	logger logger.ILogger,
) IConsumerService {
	return &archiveConsumer{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		metrics:    metrics,
		logger:     logger,
		backoff:    500 * time.Millisecond,
	}
}

func (ac *archiveConsumer) Consume(ctx context.Context) error {
	messages, err := ac.subscriber.Subscribe(ctx, ac.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ac.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ac *archiveConsumer) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ArchiveTurnsMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		ac.logger.Error("Archive", "Failed to unmarshal message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		ac.metrics.ArchiveFailures.WithLabelValues("dropped").Inc()
		// Ack invalid messages to prevent infinite retry
		msg.Ack()
		return
	}

	stored, err := ac.store(ctx, &payload)
	if err == nil {
		ac.metrics.ArchivedMessages.Add(float64(stored))
		ac.logger.Debug("Archive", "Turns archived", map[string]interface{}{
			"session_key": payload.SessionKey,
			"archive_id":  payload.ArchiveId,
			"stored":      stored,
		})
		msg.Ack()
		return
	}

	attempts := attemptCount(msg) + 1
	details := map[string]interface{}{
		"session_key": payload.SessionKey,
		"archive_id":  payload.ArchiveId,
		"attempt":     attempts,
		"error":       err.Error(),
	}

	if !isRetryable(err) || attempts >= maxArchiveAttempts {
		ac.logger.Error("Archive", "Dropping archive batch", details)
		ac.metrics.ArchiveFailures.WithLabelValues("dropped").Inc()
		msg.Ack()
		return
	}

	ac.logger.Warn("Archive", "Archive batch failed, will retry", details)
	ac.metrics.ArchiveFailures.WithLabelValues("retried").Inc()
	msg.Metadata.Set(attemptsMetadataKey, strconv.Itoa(attempts))

	select {
	case <-ctx.Done():
	case <-time.After(ac.backoff * time.Duration(attempts)):
	}
	msg.Nack()
}

// store upserts the archived session and inserts the turns it does not hold yet.
// Redelivered batches are therefore harmless.
func (ac *archiveConsumer) store(ctx context.Context, payload *dto.ArchiveTurnsMessage) (int, error) {
	archiveId, err := uuid.Parse(payload.ArchiveId)
	if err != nil {
		return 0, permanent(err)
	}

	uow := ac.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	now := time.Now()
	chatSession, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: archiveId})
	if err != nil {
		return 0, err
	}
	if chatSession == nil {
		chatSession = &entity.ChatSession{
			Id:         archiveId,
			SessionKey: payload.SessionKey,
			Flow:       payload.Flow,
			Phase:      payload.Phase,
			Tribe:      payload.Tribe,
			CreatedAt:  now,
		}
		if err := uow.ChatSessionRepository().Create(ctx, chatSession); err != nil {
			return 0, err
		}
	} else {
		chatSession.Phase = payload.Phase
		chatSession.Tribe = payload.Tribe
		chatSession.UpdatedAt = &now
		if err := uow.ChatSessionRepository().Update(ctx, chatSession); err != nil {
			return 0, err
		}
	}

	maxSeq, err := uow.ChatMessageRepository().MaxSeq(ctx, archiveId)
	if err != nil {
		return 0, err
	}

	var fresh []*entity.ChatMessage
	for _, turn := range payload.Turns {
		if turn.Seq <= maxSeq {
			continue
		}
		var shown json.RawMessage
		if len(turn.Events) > 0 {
			if shown, err = json.Marshal(turn.Events); err != nil {
				return 0, permanent(err)
			}
		}
		fresh = append(fresh, &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: archiveId,
			Seq:           turn.Seq,
			Role:          turn.Role,
			Chat:          turn.Content,
			Events:        shown,
			CreatedAt:     turn.CreatedAt,
		})
	}

	if len(fresh) > 0 {
		if err := uow.ChatMessageRepository().CreateBulk(ctx, fresh); err != nil {
			return 0, err
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

// isRetryable treats malformed payloads and constraint or data errors as permanent;
// anything else, like a lost connection, may succeed on redelivery.
func isRetryable(err error) bool {
	var perm permanentError
	if errors.As(err, &perm) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:min(2, len(pgErr.Code))] {
		case "22", "23", "42":
			return false
		}
	}
	return true
}

func attemptCount(msg *message.Message) int {
	n, err := strconv.Atoi(msg.Metadata.Get(attemptsMetadataKey))
	if err != nil {
		return 0
	}
	return n
}

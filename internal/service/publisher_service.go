package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ArchiveTopic carries committed transcript turns to the archive consumer.
const ArchiveTopic = "chat.archive"

type IPublisherService interface {
	Publish(ctx context.Context, payload []byte) error
}

type publisherService struct {
	publisher message.Publisher
	topicName string
}

func NewPublisherService(publisher message.Publisher, topicName string) IPublisherService {
	return &publisherService{
		publisher: publisher,
		topicName: topicName,
	}
}

func (ps *publisherService) Publish(_ context.Context, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return ps.publisher.Publish(ps.topicName, msg)
}

// nopPublisherService is used when no archive is configured.
type nopPublisherService struct{}

func NewNopPublisherService() IPublisherService {
	return nopPublisherService{}
}

func (nopPublisherService) Publish(context.Context, []byte) error { return nil }

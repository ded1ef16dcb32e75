package services

import (
	"context"
	"strconv"
	"time"

	"classline/internal/domain/message"
	"classline/internal/events"
	"classline/pkg/logger"
)

// EventPublisher fans domain events out to the Redis channels the websocket
// bridge listens on. Publish failures are logged, never propagated: the
// write that triggered the event has already committed.
type EventPublisher struct {
	publisher events.Publisher
	log       *logger.Logger
}

func NewEventPublisher(publisher events.Publisher, log *logger.Logger) *EventPublisher {
	return &EventPublisher{publisher: publisher, log: log}
}

func (p *EventPublisher) PublishToConversation(ctx context.Context, conversationID int64, event string, payload interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(event, payload)
	if err != nil {
		p.log.Errorf("failed to build %s envelope: %v", event, err)
		return
	}
	data, err := env.Marshal()
	if err != nil {
		p.log.Errorf("failed to marshal %s envelope: %v", event, err)
		return
	}
	channel := events.ChannelPrefixConversation + strconv.FormatInt(conversationID, 10)
	if err := p.publisher.Publish(ctx, channel, data); err != nil {
		p.log.Errorf("failed to publish %s to %s: %v", event, channel, err)
	}
}

func (p *EventPublisher) PublishToUser(ctx context.Context, userID int64, event string, payload interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(event, payload)
	if err != nil {
		p.log.Errorf("failed to build %s envelope: %v", event, err)
		return
	}
	data, err := env.Marshal()
	if err != nil {
		p.log.Errorf("failed to marshal %s envelope: %v", event, err)
		return
	}
	channel := events.ChannelPrefixUser + strconv.FormatInt(userID, 10)
	if err := p.publisher.Publish(ctx, channel, data); err != nil {
		p.log.Errorf("failed to publish %s to %s: %v", event, channel, err)
	}
}

// MessageToPayload converts a stored message to its wire shape.
func MessageToPayload(m message.Message, att *message.Attachment) events.MessagePayload {
	payload := events.MessagePayload{
		MessageID:      strconv.FormatInt(m.ID, 10),
		ConversationID: strconv.FormatInt(m.ConversationID, 10),
		SenderID:       strconv.FormatInt(m.SenderID, 10),
		SenderName:     m.SenderName,
		Content:        m.APIContent(),
		SentAt:         m.CreatedAt.UTC().Format(time.RFC3339),
		IsDeleted:      m.Deleted(),
	}
	if att != nil && !m.Deleted() {
		payload.Attachment = &events.AttachmentPayload{
			FileName: att.FileName,
			FileSize: att.FileSize,
			MimeType: att.MimeType,
			IsImage:  att.IsImage,
			FileURL:  att.FileURL,
		}
	}
	return payload
}

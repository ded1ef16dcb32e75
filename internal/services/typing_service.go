package services

import (
	"context"
	"strconv"

	"classline/internal/events"
	"classline/internal/redis"
	"classline/internal/repository"
	classline_errors "classline/pkg/errors"
)

// TypingService relays typing bursts. Indicator state lives in Redis with a
// TTL; nothing is persisted.
type TypingService struct {
	store            *redis.TypingStore
	conversationRepo repository.ConversationRepository
	courseRepo       repository.CourseRepository
	publisher        *EventPublisher
}

func NewTypingService(store *redis.TypingStore, conversationRepo repository.ConversationRepository, courseRepo repository.CourseRepository, publisher *EventPublisher) *TypingService {
	return &TypingService{
		store:            store,
		conversationRepo: conversationRepo,
		courseRepo:       courseRepo,
		publisher:        publisher,
	}
}

func (s *TypingService) SetTyping(ctx context.Context, conversationID, userID int64, userName string, isTyping bool) error {
	conv, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return classline_errors.ErrNotParticipant
	}
	if conv.CourseID.Valid {
		c, err := s.courseRepo.GetByID(ctx, conv.CourseID.Int64)
		if err != nil {
			return err
		}
		if c.Archived() {
			return classline_errors.ErrCourseArchived
		}
	}

	convKey := strconv.FormatInt(conversationID, 10)
	userKey := strconv.FormatInt(userID, 10)
	if isTyping {
		err = s.store.SetTyping(ctx, convKey, userKey)
	} else {
		err = s.store.ClearTyping(ctx, convKey, userKey)
	}
	if err != nil {
		return err
	}

	s.publisher.PublishToConversation(ctx, conversationID, events.EventTypingIndicator, events.TypingPayload{
		ConversationID: convKey,
		UserID:         userKey,
		UserName:       userName,
		IsTyping:       isTyping,
	})
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"classline/internal/domain/message"
	"classline/internal/events"
	"classline/internal/repository"
	classline_errors "classline/pkg/errors"

	"github.com/google/uuid"
)

type MessageService struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	courseRepo       repository.CourseRepository
	uploadRepo       repository.UploadRepository
	publisher        *EventPublisher
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	courseRepo repository.CourseRepository,
	uploadRepo repository.UploadRepository,
	publisher *EventPublisher,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		courseRepo:       courseRepo,
		uploadRepo:       uploadRepo,
		publisher:        publisher,
	}
}

type SendMessageInput struct {
	ConversationID  int64
	SenderID        int64
	Content         string
	ClientMessageID string
	UploadID        string
}

// Send persists a message and broadcasts new_message to the conversation.
// Sends are idempotent on (conversation, client_message_id): a retry of a
// send the server already applied returns the original stored message, so
// the client's reconciliation sees the same message_id on both paths.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (events.MessagePayload, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.UploadID == "" {
		return events.MessagePayload{}, classline_errors.ErrInvalidInput
	}

	if err := s.guardMutable(ctx, in.ConversationID, in.SenderID); err != nil {
		return events.MessagePayload{}, err
	}

	if in.ClientMessageID != "" {
		existing, err := s.messageRepo.GetByClientMessageID(ctx, in.ConversationID, in.ClientMessageID)
		if err == nil {
			return s.toPayload(ctx, existing), nil
		}
		if !errors.Is(err, classline_errors.ErrNotFound) {
			return events.MessagePayload{}, err
		}
	}

	msg := message.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
	}
	if in.Content != "" {
		msg.Content = sql.NullString{String: in.Content, Valid: true}
	}
	if in.ClientMessageID != "" {
		msg.ClientMessageID = sql.NullString{String: in.ClientMessageID, Valid: true}
	}

	var attachment *message.Attachment
	if in.UploadID != "" {
		att, err := s.attachUpload(ctx, in.UploadID, in.SenderID)
		if err != nil {
			return events.MessagePayload{}, err
		}
		attachment = att
		msg.AttachmentID = uuid.NullUUID{UUID: att.ID, Valid: true}
	}

	if err := s.messageRepo.Create(ctx, &msg); err != nil {
		if errors.Is(err, classline_errors.ErrAlreadyExists) {
			// lost the idempotency race; fetch what won
			existing, ferr := s.messageRepo.GetByClientMessageID(ctx, in.ConversationID, in.ClientMessageID)
			if ferr == nil {
				return s.toPayload(ctx, existing), nil
			}
		}
		return events.MessagePayload{}, err
	}

	_ = s.conversationRepo.Touch(ctx, in.ConversationID, msg.CreatedAt)

	stored, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return events.MessagePayload{}, err
	}

	payload := MessageToPayload(stored, attachment)
	s.publisher.PublishToConversation(ctx, in.ConversationID, events.EventNewMessage, payload)
	return payload, nil
}

// Delete soft-deletes a message (sender only) and broadcasts
// message_deleted. Idempotent: repeating the delete is a no-op success.
func (s *MessageService) Delete(ctx context.Context, messageID, userID int64) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return classline_errors.ErrForbidden
	}
	if msg.Deleted() {
		return nil
	}
	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	s.publisher.PublishToConversation(ctx, msg.ConversationID, events.EventMessageDeleted, events.MessageDeletedPayload{
		ConversationID: strconv.FormatInt(msg.ConversationID, 10),
		MessageID:      strconv.FormatInt(messageID, 10),
	})
	return nil
}

// SetReaction applies single-reaction-per-user semantics: a different prior
// emoji is replaced (its removal broadcast first), the same emoji toggles
// off. Deleted messages and archived course conversations refuse reactions.
func (s *MessageService) SetReaction(ctx context.Context, messageID, userID int64, userName, emoji string) error {
	if emoji == "" {
		return classline_errors.ErrInvalidInput
	}
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Deleted() {
		return classline_errors.ErrMessageDeleted
	}
	if err := s.guardMutable(ctx, msg.ConversationID, userID); err != nil {
		return err
	}

	reaction := &message.Reaction{MessageID: messageID, UserID: userID, UserName: userName, Emoji: emoji}
	replaced, err := s.messageRepo.SetReaction(ctx, reaction)
	if errors.Is(err, classline_errors.ErrAlreadyExists) {
		// same emoji again is a toggle-off
		return s.RemoveReaction(ctx, messageID, userID, userName, emoji)
	}
	if err != nil {
		return err
	}

	if replaced != nil {
		s.publisher.PublishToConversation(ctx, msg.ConversationID, events.EventMessageReactionRemoved, reactionPayload(msg.ConversationID, *replaced))
	}
	s.publisher.PublishToConversation(ctx, msg.ConversationID, events.EventMessageReaction, reactionPayload(msg.ConversationID, *reaction))
	return nil
}

func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID int64, userName, emoji string) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.messageRepo.RemoveReaction(ctx, messageID, userID, emoji); err != nil {
		if errors.Is(err, classline_errors.ErrNotFound) {
			return nil
		}
		return err
	}

	s.publisher.PublishToConversation(ctx, msg.ConversationID, events.EventMessageReactionRemoved, reactionPayload(msg.ConversationID, message.Reaction{
		MessageID: messageID,
		UserID:    userID,
		UserName:  userName,
		Emoji:     emoji,
	}))
	return nil
}

func (s *MessageService) GetConversationMessages(ctx context.Context, conversationID, userID int64, before time.Time, limit int) ([]events.MessagePayload, error) {
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, classline_errors.ErrNotParticipant
	}
	if before.IsZero() {
		before = time.Now().Add(time.Minute)
	}

	msgs, err := s.messageRepo.GetConversationMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}

	payloads := make([]events.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		payloads = append(payloads, s.toPayload(ctx, m))
	}
	return payloads, nil
}

func (s *MessageService) GetConversationReactions(ctx context.Context, conversationID, userID int64) (map[string][]events.ReactionPayload, error) {
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, classline_errors.ErrNotParticipant
	}

	reactions, err := s.messageRepo.GetConversationReactions(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	byMessage := make(map[string][]events.ReactionPayload)
	for _, r := range reactions {
		key := strconv.FormatInt(r.MessageID, 10)
		byMessage[key] = append(byMessage[key], reactionPayload(conversationID, r))
	}
	return byMessage, nil
}

// MarkRead records read receipts for every message in the conversation not
// authored by the reader and broadcasts messages_read.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return classline_errors.ErrNotParticipant
	}

	now := time.Now()
	if err := s.messageRepo.MarkConversationRead(ctx, conversationID, userID, now); err != nil {
		return err
	}
	if err := s.conversationRepo.MarkRead(ctx, conversationID, userID, now); err != nil {
		return err
	}

	s.publisher.PublishToConversation(ctx, conversationID, events.EventMessagesRead, events.MessagesReadPayload{
		ConversationID: strconv.FormatInt(conversationID, 10),
		UserID:         strconv.FormatInt(userID, 10),
		ReadAt:         now.UTC().Format(time.RFC3339),
	})
	return nil
}

// MarkDelivered records a delivery receipt and notifies the sender.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID, userID int64) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return nil
	}
	if err := s.messageRepo.MarkDelivered(ctx, messageID, userID); err != nil {
		return err
	}

	s.publisher.PublishToUser(ctx, msg.SenderID, events.EventMessageDelivered, events.MessageDeliveredPayload{
		ConversationID: strconv.FormatInt(msg.ConversationID, 10),
		MessageID:      strconv.FormatInt(messageID, 10),
		UserID:         strconv.FormatInt(userID, 10),
	})
	return nil
}

// guardMutable rejects writes from non-participants and writes into
// conversations whose linked course is archived.
func (s *MessageService) guardMutable(ctx context.Context, conversationID, userID int64) error {
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
	return nil
}

func (s *MessageService) attachUpload(ctx context.Context, uploadID string, userID int64) (*message.Attachment, error) {
	id, err := uuid.Parse(uploadID)
	if err != nil {
		return nil, classline_errors.ErrInvalidInput
	}
	session, err := s.uploadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UploaderID != userID || session.Status != "COMPLETED" || !session.FileURL.Valid {
		return nil, classline_errors.ErrInvalidInput
	}

	att := &message.Attachment{
		ID:       session.ID,
		FileName: session.Filename,
		FileSize: session.SizeBytes,
		MimeType: session.ContentType,
		IsImage:  strings.HasPrefix(session.ContentType, "image/"),
		FileURL:  session.FileURL.String,
	}
	if existing, err := s.messageRepo.GetAttachmentByID(ctx, att.ID); err == nil {
		return &existing, nil
	}
	if err := s.messageRepo.CreateAttachment(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

func (s *MessageService) toPayload(ctx context.Context, m message.Message) events.MessagePayload {
	var att *message.Attachment
	if m.AttachmentID.Valid {
		if a, err := s.messageRepo.GetAttachmentByID(ctx, m.AttachmentID.UUID); err == nil {
			att = &a
		}
	}
	return MessageToPayload(m, att)
}

func reactionPayload(conversationID int64, r message.Reaction) events.ReactionPayload {
	return events.ReactionPayload{
		MessageID:      strconv.FormatInt(r.MessageID, 10),
		ConversationID: strconv.FormatInt(conversationID, 10),
		Reaction:       r.Emoji,
		UserID:         strconv.FormatInt(r.UserID, 10),
		UserName:       r.UserName,
	}
}

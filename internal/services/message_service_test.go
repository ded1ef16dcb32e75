package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	"classline/internal/domain/conversation"
	"classline/internal/domain/course"
	"classline/internal/events"
	classline_errors "classline/pkg/errors"
	"classline/pkg/logger"
)

type messageServiceFixture struct {
	service  *MessageService
	convRepo *memConversationRepo
	msgRepo  *memMessageRepo
	courses  *memCourseRepo
	bus      *memPublisher

	conversationID int64
	senderID       int64
	peerID         int64
}

func newMessageServiceFixture(t *testing.T) *messageServiceFixture {
	t.Helper()

	msgRepo := newMemMessageRepo()
	convRepo := newMemConversationRepo()
	courseRepo := newMemCourseRepo()
	uploadRepo := newMemUploadRepo()
	bus := &memPublisher{}
	publisher := NewEventPublisher(bus, logger.New("test"))

	conv := &conversation.Conversation{Type: conversation.TypePrivate}
	if err := convRepo.Create(context.Background(), conv, []int64{7, 8}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	return &messageServiceFixture{
		service:        NewMessageService(msgRepo, convRepo, courseRepo, uploadRepo, publisher),
		convRepo:       convRepo,
		msgRepo:        msgRepo,
		courses:        courseRepo,
		bus:            bus,
		conversationID: conv.ID,
		senderID:       7,
		peerID:         8,
	}
}

func (f *messageServiceFixture) send(t *testing.T, content, clientMsgID string) events.MessagePayload {
	t.Helper()
	payload, err := f.service.Send(context.Background(), SendMessageInput{
		ConversationID:  f.conversationID,
		SenderID:        f.senderID,
		Content:         content,
		ClientMessageID: clientMsgID,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	return payload
}

func TestSendPublishesNewMessage(t *testing.T) {
	f := newMessageServiceFixture(t)

	payload := f.send(t, "Hello", "temp_1700000000000")

	if payload.MessageID == "" || payload.Content != "Hello" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.ConversationID != strconv.FormatInt(f.conversationID, 10) {
		t.Errorf("conversation id = %q", payload.ConversationID)
	}
	seen := f.bus.eventsSeen()
	if len(seen) != 1 || seen[0] != events.EventNewMessage {
		t.Errorf("published %v, want [new_message]", seen)
	}
}

func TestSendValidation(t *testing.T) {
	f := newMessageServiceFixture(t)

	tests := []struct {
		name    string
		input   SendMessageInput
		wantErr error
	}{
		{
			"empty content without upload",
			SendMessageInput{ConversationID: f.conversationID, SenderID: f.senderID, Content: "   "},
			classline_errors.ErrInvalidInput,
		},
		{
			"non participant",
			SendMessageInput{ConversationID: f.conversationID, SenderID: 99, Content: "hi"},
			classline_errors.ErrNotParticipant,
		},
		{
			"unknown conversation",
			SendMessageInput{ConversationID: 999, SenderID: f.senderID, Content: "hi"},
			classline_errors.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Send(context.Background(), tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendArchivedCourseRejected(t *testing.T) {
	f := newMessageServiceFixture(t)

	c := &course.Course{Code: "CS101", Title: "Intro", OwnerID: f.senderID, Status: course.StatusArchived}
	if err := f.courses.Create(context.Background(), c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	conv := &conversation.Conversation{
		Type:     conversation.TypeGroup,
		CourseID: sql.NullInt64{Int64: c.ID, Valid: true},
	}
	if err := f.convRepo.Create(context.Background(), conv, []int64{f.senderID}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	_, err := f.service.Send(context.Background(), SendMessageInput{
		ConversationID: conv.ID, SenderID: f.senderID, Content: "hi",
	})
	if !errors.Is(err, classline_errors.ErrCourseArchived) {
		t.Errorf("got %v, want ErrCourseArchived", err)
	}
}

func TestSendIdempotentOnClientMessageID(t *testing.T) {
	f := newMessageServiceFixture(t)

	first := f.send(t, "Hello", "temp_1700000000000")
	second := f.send(t, "Hello", "temp_1700000000000")

	if first.MessageID != second.MessageID {
		t.Errorf("retry produced a new message: %q vs %q", first.MessageID, second.MessageID)
	}
	// Only the first send broadcasts.
	if seen := f.bus.eventsSeen(); len(seen) != 1 {
		t.Errorf("retry re-broadcast: %v", seen)
	}
}

func TestDeleteSenderOnlyAndIdempotent(t *testing.T) {
	f := newMessageServiceFixture(t)
	payload := f.send(t, "to be removed", "")
	messageID, _ := strconv.ParseInt(payload.MessageID, 10, 64)

	if err := f.service.Delete(context.Background(), messageID, f.peerID); !errors.Is(err, classline_errors.ErrForbidden) {
		t.Errorf("peer delete: got %v, want ErrForbidden", err)
	}
	if err := f.service.Delete(context.Background(), messageID, f.senderID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Repeat is a silent success without another broadcast.
	if err := f.service.Delete(context.Background(), messageID, f.senderID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	want := []string{events.EventNewMessage, events.EventMessageDeleted}
	got := f.bus.eventsSeen()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
}

func TestSetReactionSingleEmojiPerUser(t *testing.T) {
	f := newMessageServiceFixture(t)
	payload := f.send(t, "react to me", "")
	messageID, _ := strconv.ParseInt(payload.MessageID, 10, 64)

	if err := f.service.SetReaction(context.Background(), messageID, f.peerID, "Bob", "👍"); err != nil {
		t.Fatalf("SetReaction: %v", err)
	}
	if err := f.service.SetReaction(context.Background(), messageID, f.peerID, "Bob", "❤️"); err != nil {
		t.Fatalf("switch SetReaction: %v", err)
	}

	reactions, err := f.msgRepo.GetConversationReactions(context.Background(), f.conversationID)
	if err != nil {
		t.Fatalf("GetConversationReactions: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Emoji != "❤️" {
		t.Errorf("expected single ❤️ reaction, got %+v", reactions)
	}

	// new_message, reaction add, removal of prior, replacement add
	want := []string{events.EventNewMessage, events.EventMessageReaction, events.EventMessageReactionRemoved, events.EventMessageReaction}
	if got := f.bus.eventsSeen(); len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
}

func TestSetReactionSameEmojiTogglesOff(t *testing.T) {
	f := newMessageServiceFixture(t)
	payload := f.send(t, "toggle", "")
	messageID, _ := strconv.ParseInt(payload.MessageID, 10, 64)

	_ = f.service.SetReaction(context.Background(), messageID, f.peerID, "Bob", "👍")
	if err := f.service.SetReaction(context.Background(), messageID, f.peerID, "Bob", "👍"); err != nil {
		t.Fatalf("toggle SetReaction: %v", err)
	}

	reactions, _ := f.msgRepo.GetConversationReactions(context.Background(), f.conversationID)
	if len(reactions) != 0 {
		t.Errorf("expected toggle-off to clear reaction, got %+v", reactions)
	}
}

func TestSetReactionOnDeletedMessage(t *testing.T) {
	f := newMessageServiceFixture(t)
	payload := f.send(t, "gone", "")
	messageID, _ := strconv.ParseInt(payload.MessageID, 10, 64)
	if err := f.service.Delete(context.Background(), messageID, f.senderID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	err := f.service.SetReaction(context.Background(), messageID, f.peerID, "Bob", "👍")
	if !errors.Is(err, classline_errors.ErrMessageDeleted) {
		t.Errorf("got %v, want ErrMessageDeleted", err)
	}
}

func TestRemoveReactionAbsentIsNoop(t *testing.T) {
	f := newMessageServiceFixture(t)
	payload := f.send(t, "nothing here", "")
	messageID, _ := strconv.ParseInt(payload.MessageID, 10, 64)

	if err := f.service.RemoveReaction(context.Background(), messageID, f.peerID, "Bob", "👍"); err != nil {
		t.Errorf("absent removal errored: %v", err)
	}
	if seen := f.bus.eventsSeen(); len(seen) != 1 {
		t.Errorf("absent removal broadcast: %v", seen)
	}
}

func TestDeletedContentPlaceholderOnRead(t *testing.T) {
	f := newMessageServiceFixture(t)
	payload := f.send(t, "secret", "")
	messageID, _ := strconv.ParseInt(payload.MessageID, 10, 64)
	_ = f.service.Delete(context.Background(), messageID, f.senderID)

	msgs, err := f.service.GetConversationMessages(context.Background(), f.conversationID, f.senderID, time.Time{}, 50)
	if err != nil {
		t.Fatalf("GetConversationMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !msgs[0].IsDeleted || msgs[0].Content != "This message was deleted" {
		t.Errorf("deleted read: is_deleted=%v content=%q", msgs[0].IsDeleted, msgs[0].Content)
	}
}

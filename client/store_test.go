package client

import (
	"errors"
	"testing"
	"time"

	classline_errors "classline/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.UpsertConversation(Conversation{
		ConversationID: "42",
		Type:           "private",
		Participants: []Participant{
			{UserID: "7", DisplayName: "Alice"},
			{UserID: "8", DisplayName: "Bob"},
		},
	})
	return s
}

func serverMessage(id, content string) Message {
	return Message{
		MessageID:      id,
		ConversationID: "42",
		SenderID:       "7",
		SenderName:     "Alice",
		Content:        content,
		SentAt:         "2024-01-01T00:00:00Z",
	}
}

func TestAppendOptimistic(t *testing.T) {
	s := newTestStore(t)

	msg, err := s.AppendOptimistic("42", Draft{SenderID: "7", SenderName: "Alice", Content: "Hello"})
	if err != nil {
		t.Fatalf("AppendOptimistic: %v", err)
	}
	if !msg.IsSending {
		t.Error("expected is_sending on optimistic message")
	}
	if !msg.IsTemp() {
		t.Errorf("expected temp id, got %q", msg.MessageID)
	}
	if got := s.Messages("42"); len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}

	c, _ := s.Get("42")
	if c.LastMessage != "Hello" {
		t.Errorf("expected summary update, got %q", c.LastMessage)
	}
}

func TestAppendOptimisticValidation(t *testing.T) {
	s := newTestStore(t)
	s.UpsertConversation(Conversation{ConversationID: "9", CourseID: "3", CourseStatus: "archived", Type: "group"})

	tests := []struct {
		name           string
		conversationID string
		draft          Draft
		wantErr        error
	}{
		{"empty draft", "42", Draft{SenderID: "7"}, classline_errors.ErrInvalidInput},
		{"unknown conversation", "999", Draft{SenderID: "7", Content: "hi"}, classline_errors.ErrNotFound},
		{"archived course", "9", Draft{SenderID: "7", Content: "hi"}, classline_errors.ErrCourseArchived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AppendOptimistic(tt.conversationID, tt.draft)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if got := s.Messages(tt.conversationID); len(got) != 0 {
				t.Errorf("state mutated on rejected draft: %d messages", len(got))
			}
		})
	}
}

func TestAppendOptimisticDuplicateInFlight(t *testing.T) {
	s := newTestStore(t)
	draft := Draft{SenderID: "7", SenderName: "Alice", Content: "Hello"}

	if _, err := s.AppendOptimistic("42", draft); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := s.AppendOptimistic("42", draft); !errors.Is(err, classline_errors.ErrDuplicateInFlight) {
		t.Errorf("got %v, want ErrDuplicateInFlight", err)
	}
}

func TestReconcileSuccessReplacesInPlace(t *testing.T) {
	s := newTestStore(t)

	temp, _ := s.AppendOptimistic("42", Draft{SenderID: "7", SenderName: "Alice", Content: "Hello"})
	s.ApplyBroadcast(serverMessage("900", "earlier broadcast from someone"))

	before := len(s.Messages("42"))
	s.ReconcileSuccess("42", temp.MessageID, serverMessage("901", "Hello"))

	got := s.Messages("42")
	if len(got) != before {
		t.Fatalf("length changed on reconcile: %d -> %d", before, len(got))
	}
	// The replacement keeps the optimistic slot, position 0.
	if got[0].MessageID != "901" {
		t.Errorf("expected replaced message at original position, got %q", got[0].MessageID)
	}
	if got[0].IsSending {
		t.Error("is_sending not cleared")
	}
}

func TestReconcileSuccessUnknownTempIsNoop(t *testing.T) {
	s := newTestStore(t)
	s.ApplyBroadcast(serverMessage("901", "Hello"))

	s.ReconcileSuccess("42", "temp_123", serverMessage("901", "Hello"))
	if got := s.Messages("42"); len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
}

func TestReconcileFailureKeepsMessage(t *testing.T) {
	s := newTestStore(t)
	temp, _ := s.AppendOptimistic("42", Draft{SenderID: "7", Content: "Hello"})

	s.ReconcileFailure("42", temp.MessageID)

	got := s.Messages("42")
	if len(got) != 1 {
		t.Fatalf("failed message was removed")
	}
	if got[0].IsSending || !got[0].Failed {
		t.Errorf("expected is_sending=false failed=true, got sending=%v failed=%v", got[0].IsSending, got[0].Failed)
	}
}

func TestMarkDeletedIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.ApplyBroadcast(serverMessage("901", "something secret"))

	s.MarkDeleted("42", "901")
	first := s.Messages("42")[0]

	s.MarkDeleted("42", "901")
	second := s.Messages("42")[0]

	if first != second {
		t.Error("second MarkDeleted changed state")
	}
	if !second.IsDeleted {
		t.Error("is_deleted not set")
	}
	if second.Content != DeletedPlaceholder {
		t.Errorf("content = %q, want placeholder", second.Content)
	}
}

func TestMarkDeletedKeepsAttachment(t *testing.T) {
	s := newTestStore(t)
	msg := serverMessage("901", "")
	msg.Attachment = &Attachment{FileName: "notes.pdf", FileSize: 1024, MimeType: "application/pdf"}
	s.ApplyBroadcast(msg)

	s.MarkDeleted("42", "901")
	got := s.Messages("42")[0]
	if got.Attachment == nil || got.Attachment.FileName != "notes.pdf" {
		t.Error("attachment dropped on delete")
	}
}

func TestApplyBroadcastDedupByMessageID(t *testing.T) {
	s := newTestStore(t)
	s.ApplyBroadcast(serverMessage("901", "Hello"))

	if replaced := s.ApplyBroadcast(serverMessage("901", "Hello")); !replaced {
		t.Error("exact id resend appended instead of replacing")
	}
	if got := s.Messages("42"); len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
}

func TestApplyBroadcastDedupByTempHeuristic(t *testing.T) {
	s := newTestStore(t)
	temp, _ := s.AppendOptimistic("42", Draft{SenderID: "7", SenderName: "Alice", Content: "Hello"})

	if replaced := s.ApplyBroadcast(serverMessage("901", "Hello")); !replaced {
		t.Error("broadcast echo of in-flight send appended instead of replacing")
	}
	got := s.Messages("42")
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].MessageID != "901" {
		t.Errorf("temp id %q not replaced by server id", temp.MessageID)
	}
}

func TestApplyBroadcastAttachmentHeuristic(t *testing.T) {
	s := newTestStore(t)
	att := &Attachment{FileName: "notes.pdf", FileSize: 1024, MimeType: "application/pdf"}
	s.AppendOptimistic("42", Draft{SenderID: "7", Attachment: att})

	incoming := serverMessage("902", "")
	incoming.Attachment = &Attachment{FileName: "notes.pdf", FileSize: 1024, MimeType: "application/pdf", FileURL: "https://cdn/notes.pdf"}
	if replaced := s.ApplyBroadcast(incoming); !replaced {
		t.Error("attachment-name echo appended instead of replacing")
	}
}

func TestApplyBroadcastOtherSenderAppends(t *testing.T) {
	s := newTestStore(t)
	s.AppendOptimistic("42", Draft{SenderID: "7", Content: "Hello"})

	other := serverMessage("903", "Hello")
	other.SenderID = "8"
	if replaced := s.ApplyBroadcast(other); replaced {
		t.Error("another sender's message replaced a local in-flight entry")
	}
	if got := s.Messages("42"); len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
}

func TestReplaceAllPreservesInFlight(t *testing.T) {
	s := newTestStore(t)
	temp, _ := s.AppendOptimistic("42", Draft{SenderID: "7", Content: "still sending"})

	history := []Message{
		serverMessage("902", "second"),
		serverMessage("901", "first"),
	}
	history[0].SentAt = "2024-01-01T00:01:00Z"
	s.ReplaceAll("42", history)

	got := s.Messages("42")
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].MessageID != "901" || got[1].MessageID != "902" {
		t.Errorf("history not ordered by sent_at ascending: %q, %q", got[0].MessageID, got[1].MessageID)
	}
	if got[2].MessageID != temp.MessageID {
		t.Errorf("in-flight message clobbered by full fetch")
	}
}

func TestReplaceAllDropsEchoedInFlight(t *testing.T) {
	s := newTestStore(t)
	s.AppendOptimistic("42", Draft{SenderID: "7", Content: "Hello"})

	s.ReplaceAll("42", []Message{serverMessage("901", "Hello")})

	got := s.Messages("42")
	if len(got) != 1 {
		t.Fatalf("expected server echo to subsume in-flight copy, got %d messages", len(got))
	}
	if got[0].MessageID != "901" {
		t.Errorf("expected server message, got %q", got[0].MessageID)
	}
}

func TestConversationOrdering(t *testing.T) {
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.UpsertConversation(Conversation{ConversationID: "10", Type: "private", UpdatedAt: base.Add(3 * time.Hour)})
	s.UpsertConversation(Conversation{ConversationID: "11", Type: "group", CourseID: "5", UpdatedAt: base})
	s.UpsertConversation(Conversation{ConversationID: "12", Type: "group", CourseID: "6", UpdatedAt: base.Add(time.Hour)})
	s.UpsertConversation(Conversation{ConversationID: "13", Type: "private", UpdatedAt: base.Add(2 * time.Hour)})

	got := s.Conversations()
	wantOrder := []string{"12", "11", "10", "13"}
	for i, want := range wantOrder {
		if got[i].ConversationID != want {
			t.Fatalf("position %d = %q, want %q (course-linked pinned first, then updated_at desc)", i, got[i].ConversationID, want)
		}
	}
}

func TestTempIDsAreUnique(t *testing.T) {
	s := newTestStore(t)
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		msg, err := s.AppendOptimistic("42", Draft{SenderID: "7", Content: time.Now().String() + string(rune('a'+i))})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if _, dup := seen[msg.MessageID]; dup {
			t.Fatalf("duplicate temp id %q", msg.MessageID)
		}
		seen[msg.MessageID] = struct{}{}
	}
}

// Package client is the Go SDK for the classline messaging API. It keeps a
// local, optimistically updated view of conversations that is reconciled
// against server acknowledgements and socket broadcasts.
package client

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	classline_errors "classline/pkg/errors"
)

// DeletedPlaceholder replaces the content of a deleted message.
const DeletedPlaceholder = "This message was deleted"

const tempIDPrefix = "temp_"

// Attachment describes a file carried by a message.
type Attachment struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	IsImage  bool   `json:"is_image"`
	FileURL  string `json:"file_url"`
}

// Message is one entry in a conversation's history. MessageID is either a
// server-issued numeric string or a client temp id until the send is
// confirmed.
type Message struct {
	MessageID      string      `json:"message_id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	SenderName     string      `json:"sender_name"`
	Content        string      `json:"content"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	SentAt         string      `json:"sent_at"`
	IsSending      bool        `json:"is_sending,omitempty"`
	Failed         bool        `json:"failed,omitempty"`
	IsDeleted      bool        `json:"is_deleted,omitempty"`
}

// IsTemp reports whether the message still carries a client-generated id.
func (m Message) IsTemp() bool {
	return len(m.MessageID) > len(tempIDPrefix) && m.MessageID[:len(tempIDPrefix)] == tempIDPrefix
}

type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Conversation is the client-side record. Server-persisted conversations
// have numeric ids; locally provisioned ones carry prefixed ids and are
// never sent over the wire.
type Conversation struct {
	ConversationID string        `json:"conversation_id"`
	Type           string        `json:"conversation_type"`
	CourseID       string        `json:"course_id,omitempty"`
	CourseStatus   string        `json:"course_status,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	Participants   []Participant `json:"participants"`
	Messages       []Message     `json:"messages"`
	LastMessage    string        `json:"last_message,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Loading        bool          `json:"-"`
}

// Archived reports whether the linked course no longer accepts mutations.
func (c Conversation) Archived() bool {
	return c.CourseStatus == "archived"
}

// ServerPersisted reports whether the conversation id is a server-issued
// numeric id rather than a local placeholder.
func (c Conversation) ServerPersisted() bool {
	_, err := strconv.ParseInt(c.ConversationID, 10, 64)
	return err == nil
}

// Draft is an in-progress outgoing message. UploadID references a completed
// upload session when the draft carries an attachment.
type Draft struct {
	SenderID   string
	SenderName string
	Content    string
	Attachment *Attachment
	UploadID   string
}

// Store holds every conversation the client knows about. All mutation goes
// through its methods under one lock, so ack and broadcast handlers may run
// on different goroutines.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	lastTempMilli int64

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

// UpsertConversation inserts or refreshes a conversation record, keeping
// any message history already held locally.
func (s *Store) UpsertConversation(c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.conversations[c.ConversationID]
	if !ok {
		cp := c
		if cp.Messages == nil {
			cp.Messages = []Message{}
		}
		s.conversations[c.ConversationID] = &cp
		return
	}
	existing.Type = c.Type
	existing.CourseID = c.CourseID
	existing.CourseStatus = c.CourseStatus
	existing.Subject = c.Subject
	existing.Participants = c.Participants
	existing.LastMessage = c.LastMessage
	if c.UpdatedAt.After(existing.UpdatedAt) {
		existing.UpdatedAt = c.UpdatedAt
	}
}

// Conversations returns a snapshot sorted with course-linked group
// conversations pinned first, then by updated_at descending.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, s.snapshotLocked(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		iCourse := out[i].CourseID != ""
		jCourse := out[j].CourseID != ""
		if iCourse != jCourse {
			return iCourse
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Messages returns a copy of the conversation's message list, oldest first.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Get returns a snapshot of one conversation.
func (s *Store) Get(conversationID string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return s.snapshotLocked(c), true
}

// AppendOptimistic validates the draft, appends it with a fresh temp id and
// is_sending set, and returns the created record for later reconciliation.
//
// A draft is rejected when it is empty, when the conversation's course is
// archived, or when the same (sender, content, attachment) triple is
// already in flight in this conversation.
func (s *Store) AppendOptimistic(conversationID string, draft Draft) (Message, error) {
	if draft.Content == "" && draft.Attachment == nil {
		return Message{}, classline_errors.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return Message{}, classline_errors.ErrNotFound
	}
	if c.Archived() {
		return Message{}, classline_errors.ErrCourseArchived
	}
	for _, m := range c.Messages {
		if m.IsSending && inFlightMatch(m, draft) {
			return Message{}, classline_errors.ErrDuplicateInFlight
		}
	}

	now := s.now()
	msg := Message{
		MessageID:      s.nextTempIDLocked(now),
		ConversationID: conversationID,
		SenderID:       draft.SenderID,
		SenderName:     draft.SenderName,
		Content:        draft.Content,
		Attachment:     draft.Attachment,
		SentAt:         now.UTC().Format(time.RFC3339),
		IsSending:      true,
	}
	c.Messages = append(c.Messages, msg)
	s.touchLocked(c, msg)
	return msg, nil
}

// ReconcileSuccess replaces the temp message with the server's record and
// clears is_sending. A missing temp id means the broadcast path already
// reconciled this send; the call is then a no-op.
func (s *Store) ReconcileSuccess(conversationID, tempID string, server Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	for i := range c.Messages {
		if c.Messages[i].MessageID == tempID {
			server.IsSending = false
			server.Failed = false
			c.Messages[i] = server
			s.touchLocked(c, server)
			return
		}
	}
}

// ReconcileFailure marks the temp message failed. The entry is kept so the
// user can see and resend it.
func (s *Store) ReconcileFailure(conversationID, tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	for i := range c.Messages {
		if c.Messages[i].MessageID == tempID {
			c.Messages[i].IsSending = false
			c.Messages[i].Failed = true
			return
		}
	}
}

// MarkDeleted flags the message deleted and replaces its content with the
// placeholder. Idempotent. The attachment is kept internally but callers
// must not render it once deleted.
func (s *Store) MarkDeleted(conversationID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	for i := range c.Messages {
		if c.Messages[i].MessageID == messageID {
			c.Messages[i].IsDeleted = true
			c.Messages[i].Content = DeletedPlaceholder
			return
		}
	}
}

// ReplaceAll overwrites the conversation's history with a full server fetch,
// ordered by sent_at ascending, while preserving local in-flight sends the
// server does not yet know about.
func (s *Store) ReplaceAll(conversationID string, serverMessages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		c = &Conversation{ConversationID: conversationID}
		s.conversations[conversationID] = c
	}

	merged := make([]Message, len(serverMessages))
	copy(merged, serverMessages)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt < merged[j].SentAt
	})

	known := make(map[string]struct{}, len(merged))
	for _, m := range merged {
		known[m.MessageID] = struct{}{}
	}
	for _, m := range c.Messages {
		if !m.IsSending {
			continue
		}
		if _, ok := known[m.MessageID]; ok {
			continue
		}
		if echoed(merged, m) {
			continue
		}
		merged = append(merged, m)
	}

	c.Messages = merged
	if len(merged) > 0 {
		s.touchLocked(c, merged[len(merged)-1])
	}
}

// ApplyBroadcast merges an inbound new_message event. The sender of a
// message may see it twice, once via the send acknowledgement and once via
// this broadcast, in either order, so before appending the store looks for
// an entry to replace: an exact message_id match, or an in-flight temp
// message from the same sender with the same content or attachment name.
// It reports whether an existing entry was replaced.
func (s *Store) ApplyBroadcast(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		c = &Conversation{ConversationID: msg.ConversationID}
		s.conversations[msg.ConversationID] = c
	}

	msg.IsSending = false
	msg.Failed = false

	for i := range c.Messages {
		if c.Messages[i].MessageID == msg.MessageID {
			c.Messages[i] = msg
			s.touchLocked(c, msg)
			return true
		}
	}
	for i := range c.Messages {
		existing := c.Messages[i]
		if !existing.IsSending && !existing.IsTemp() {
			continue
		}
		if existing.SenderID != msg.SenderID {
			continue
		}
		if sameContent(existing, msg) {
			c.Messages[i] = msg
			s.touchLocked(c, msg)
			return true
		}
	}

	c.Messages = append(c.Messages, msg)
	s.touchLocked(c, msg)
	return false
}

// SetLoading flips the transient history-fetch flag.
func (s *Store) SetLoading(conversationID string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[conversationID]; ok {
		c.Loading = loading
	}
}

// SetCourseStatus records an archival status change pushed by the server.
func (s *Store) SetCourseStatus(conversationID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.conversations[conversationID]; ok {
		c.CourseStatus = status
	}
}

func (s *Store) snapshotLocked(c *Conversation) Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return cp
}

// nextTempIDLocked derives temp ids from the clock, bumping by one
// millisecond when two sends land in the same tick.
func (s *Store) nextTempIDLocked(now time.Time) string {
	milli := now.UnixMilli()
	if milli <= s.lastTempMilli {
		milli = s.lastTempMilli + 1
	}
	s.lastTempMilli = milli
	return fmt.Sprintf("%s%d", tempIDPrefix, milli)
}

func (s *Store) touchLocked(c *Conversation, m Message) {
	if m.IsDeleted {
		c.LastMessage = DeletedPlaceholder
	} else if m.Content != "" {
		c.LastMessage = m.Content
	} else if m.Attachment != nil {
		c.LastMessage = m.Attachment.FileName
	}
	c.UpdatedAt = s.now()
}

func inFlightMatch(m Message, d Draft) bool {
	if m.SenderID != d.SenderID {
		return false
	}
	if m.Content != d.Content {
		return false
	}
	mName, dName := "", ""
	if m.Attachment != nil {
		mName = m.Attachment.FileName
	}
	if d.Attachment != nil {
		dName = d.Attachment.FileName
	}
	return mName == dName
}

func sameContent(existing, incoming Message) bool {
	if existing.Content != "" && existing.Content == incoming.Content {
		return true
	}
	if existing.Attachment != nil && incoming.Attachment != nil &&
		existing.Attachment.FileName == incoming.Attachment.FileName {
		return true
	}
	return false
}

func echoed(serverMessages []Message, local Message) bool {
	for _, m := range serverMessages {
		if m.SenderID == local.SenderID && sameContent(local, m) {
			return true
		}
	}
	return false
}

// FindMessage locates a message by id across all conversations.
func (s *Store) FindMessage(messageID string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		for _, m := range c.Messages {
			if m.MessageID == messageID {
				return m, true
			}
		}
	}
	return Message{}, false
}

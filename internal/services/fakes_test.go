package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"classline/internal/domain/conversation"
	"classline/internal/domain/course"
	"classline/internal/domain/message"
	"classline/internal/domain/upload"
	"classline/internal/domain/user"
	"classline/internal/events"
	classline_errors "classline/pkg/errors"
)

// memPublisher captures everything fanned out to Redis channels.
type memPublisher struct {
	mu        sync.Mutex
	envelopes []publishedEnvelope
}

type publishedEnvelope struct {
	Channel string
	Event   string
	Payload json.RawMessage
}

func (p *memPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	p.mu.Lock()
	p.envelopes = append(p.envelopes, publishedEnvelope{Channel: channel, Event: env.Event, Payload: env.Payload})
	p.mu.Unlock()
	return nil
}

func (p *memPublisher) eventsSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.envelopes))
	for i, e := range p.envelopes {
		out[i] = e.Event
	}
	return out
}

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return classline_errors.ErrAlreadyExists
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, classline_errors.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, classline_errors.ErrNotFound
}

func (r *memUserRepo) SearchUsers(_ context.Context, query string, limit int) ([]user.User, error) {
	return nil, nil
}

type memCourseRepo struct {
	mu      sync.Mutex
	nextID  int64
	courses map[int64]course.Course
}

func newMemCourseRepo() *memCourseRepo {
	return &memCourseRepo{courses: make(map[int64]course.Course)}
}

func (r *memCourseRepo) Create(_ context.Context, c *course.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.Status == "" {
		c.Status = course.StatusActive
	}
	r.courses[c.ID] = *c
	return nil
}

func (r *memCourseRepo) GetByID(_ context.Context, id int64) (course.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return course.Course{}, classline_errors.ErrNotFound
	}
	return c, nil
}

func (r *memCourseRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return classline_errors.ErrNotFound
	}
	c.Status = status
	r.courses[id] = c
	return nil
}

func (r *memCourseRepo) Enroll(_ context.Context, e *course.Enrollment) error { return nil }
func (r *memCourseRepo) Drop(_ context.Context, courseID, userID int64) error { return nil }
func (r *memCourseRepo) GetRoster(_ context.Context, courseID int64) ([]user.User, error) {
	return nil, nil
}
func (r *memCourseRepo) IsEnrolled(_ context.Context, courseID, userID int64) (bool, error) {
	return true, nil
}
func (r *memCourseRepo) GetUserCourses(_ context.Context, userID int64) ([]course.Course, error) {
	return nil, nil
}

type memConversationRepo struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[int64]conversation.Conversation
	participants  map[int64][]int64
	readAt        map[int64]map[int64]time.Time
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{
		conversations: make(map[int64]conversation.Conversation),
		participants:  make(map[int64][]int64),
		readAt:        make(map[int64]map[int64]time.Time),
	}
}

func (r *memConversationRepo) Create(_ context.Context, c *conversation.Conversation, participantIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.conversations[c.ID] = *c
	r.participants[c.ID] = append([]int64{}, participantIDs...)
	return nil
}

func (r *memConversationRepo) GetByID(_ context.Context, id int64) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return conversation.Conversation{}, classline_errors.ErrNotFound
	}
	return c, nil
}

func (r *memConversationRepo) GetByCourseID(_ context.Context, courseID int64) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.CourseID.Valid && c.CourseID.Int64 == courseID {
			return c, nil
		}
	}
	return conversation.Conversation{}, classline_errors.ErrNotFound
}

func (r *memConversationRepo) GetDirectConversation(_ context.Context, userID1, userID2 int64) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conversations {
		if c.Type != conversation.TypePrivate {
			continue
		}
		members := r.participants[id]
		if len(members) == 2 && contains(members, userID1) && contains(members, userID2) {
			return c, nil
		}
	}
	return conversation.Conversation{}, classline_errors.ErrNotFound
}

func (r *memConversationRepo) GetUserConversations(_ context.Context, userID int64) ([]conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.Conversation
	for id, c := range r.conversations {
		if contains(r.participants[id], userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memConversationRepo) GetParticipants(_ context.Context, conversationID int64) ([]conversation.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.Participant
	for _, uid := range r.participants[conversationID] {
		out = append(out, conversation.Participant{ConversationID: conversationID, UserID: uid})
	}
	return out, nil
}

func (r *memConversationRepo) AddParticipant(_ context.Context, conversationID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !contains(r.participants[conversationID], userID) {
		r.participants[conversationID] = append(r.participants[conversationID], userID)
	}
	return nil
}

func (r *memConversationRepo) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return contains(r.participants[conversationID], userID), nil
}

func (r *memConversationRepo) UpdateSubject(_ context.Context, conversationID int64, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return classline_errors.ErrNotFound
	}
	c.Subject = sql.NullString{String: subject, Valid: true}
	r.conversations[conversationID] = c
	return nil
}

func (r *memConversationRepo) Touch(_ context.Context, conversationID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return classline_errors.ErrNotFound
	}
	c.UpdatedAt = at
	r.conversations[conversationID] = c
	return nil
}

func (r *memConversationRepo) MarkRead(_ context.Context, conversationID, userID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readAt[conversationID] == nil {
		r.readAt[conversationID] = make(map[int64]time.Time)
	}
	r.readAt[conversationID][userID] = at
	return nil
}

type reactionKey struct {
	messageID int64
	userID    int64
}

type memMessageRepo struct {
	mu          sync.Mutex
	nextID      int64
	messages    map[int64]message.Message
	byClientID  map[string]int64
	reactions   map[reactionKey]message.Reaction
	delivered   map[int64][]int64
	attachments map[uuid.UUID]message.Attachment
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{
		messages:    make(map[int64]message.Message),
		byClientID:  make(map[string]int64),
		reactions:   make(map[reactionKey]message.Reaction),
		delivered:   make(map[int64][]int64),
		attachments: make(map[uuid.UUID]message.Attachment),
	}
}

func clientKey(conversationID int64, clientMsgID string) string {
	return fmt.Sprintf("%d:%s", conversationID, clientMsgID)
}

func (r *memMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ClientMessageID.Valid {
		if _, dup := r.byClientID[clientKey(m.ConversationID, m.ClientMessageID.String)]; dup {
			return classline_errors.ErrAlreadyExists
		}
	}
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = time.Now()
	r.messages[m.ID] = *m
	if m.ClientMessageID.Valid {
		r.byClientID[clientKey(m.ConversationID, m.ClientMessageID.String)] = m.ID
	}
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id int64) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return message.Message{}, classline_errors.ErrNotFound
	}
	return m, nil
}

func (r *memMessageRepo) GetByClientMessageID(_ context.Context, conversationID int64, clientMsgID string) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byClientID[clientKey(conversationID, clientMsgID)]
	if !ok {
		return message.Message{}, classline_errors.ErrNotFound
	}
	return r.messages[id], nil
}

func (r *memMessageRepo) GetConversationMessages(_ context.Context, conversationID int64, before time.Time, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.CreatedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) GetLatestMessage(_ context.Context, conversationID int64) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest message.Message
	found := false
	for _, m := range r.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if !found || m.CreatedAt.After(latest.CreatedAt) {
			latest = m
			found = true
		}
	}
	if !found {
		return message.Message{}, classline_errors.ErrNotFound
	}
	return latest, nil
}

func (r *memMessageRepo) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return classline_errors.ErrNotFound
	}
	if !m.DeletedAt.Valid {
		m.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
		r.messages[id] = m
	}
	return nil
}

func (r *memMessageRepo) SetReaction(_ context.Context, reaction *message.Reaction) (*message.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{messageID: reaction.MessageID, userID: reaction.UserID}
	prior, had := r.reactions[key]
	if had && prior.Emoji == reaction.Emoji {
		return nil, classline_errors.ErrAlreadyExists
	}
	r.reactions[key] = *reaction
	if had {
		return &prior, nil
	}
	return nil, nil
}

func (r *memMessageRepo) RemoveReaction(_ context.Context, messageID, userID int64, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{messageID: messageID, userID: userID}
	prior, had := r.reactions[key]
	if !had || prior.Emoji != emoji {
		return classline_errors.ErrNotFound
	}
	delete(r.reactions, key)
	return nil
}

func (r *memMessageRepo) GetConversationReactions(_ context.Context, conversationID int64) ([]message.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Reaction
	for key, reaction := range r.reactions {
		if m, ok := r.messages[key.messageID]; ok && m.ConversationID == conversationID {
			out = append(out, reaction)
		}
	}
	return out, nil
}

func (r *memMessageRepo) MarkDelivered(_ context.Context, messageID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered[messageID] = append(r.delivered[messageID], userID)
	return nil
}

func (r *memMessageRepo) MarkConversationRead(_ context.Context, conversationID, userID int64, at time.Time) error {
	return nil
}

func (r *memMessageRepo) CreateAttachment(_ context.Context, a *message.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments[a.ID] = *a
	return nil
}

func (r *memMessageRepo) GetAttachmentByID(_ context.Context, id uuid.UUID) (message.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attachments[id]
	if !ok {
		return message.Attachment{}, classline_errors.ErrNotFound
	}
	return a, nil
}

type memUploadRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]upload.UploadSession
}

func newMemUploadRepo() *memUploadRepo {
	return &memUploadRepo{sessions: make(map[uuid.UUID]upload.UploadSession)}
}

func (r *memUploadRepo) Create(_ context.Context, u *upload.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[u.ID] = *u
	return nil
}

func (r *memUploadRepo) GetByID(_ context.Context, id uuid.UUID) (upload.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return upload.UploadSession{}, classline_errors.ErrNotFound
	}
	return s, nil
}

func (r *memUploadRepo) MarkCompleted(_ context.Context, id uuid.UUID, fileURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return classline_errors.ErrNotFound
	}
	s.Status = "COMPLETED"
	s.FileURL.String = fileURL
	s.FileURL.Valid = true
	r.sessions[id] = s
	return nil
}

func (r *memUploadRepo) MarkFailed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return classline_errors.ErrNotFound
	}
	s.Status = "FAILED"
	r.sessions[id] = s
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

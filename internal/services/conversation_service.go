package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"classline/internal/domain/conversation"
	"classline/internal/repository"
	classline_errors "classline/pkg/errors"
)

type ConversationService struct {
	conversationRepo repository.ConversationRepository
	courseRepo       repository.CourseRepository
	messageRepo      repository.MessageRepository
	userRepo         repository.UserRepository
}

func NewConversationService(
	conversationRepo repository.ConversationRepository,
	courseRepo repository.CourseRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		courseRepo:       courseRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

// ConversationView is a conversation plus the denormalized summary fields
// the conversation list renders and sorts on.
type ConversationView struct {
	ID           string            `json:"conversation_id"`
	Type         string            `json:"conversation_type"`
	CourseID     string            `json:"course_id,omitempty"`
	CourseStatus string            `json:"course_status,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Participants []ParticipantView `json:"participants"`
	LastMessage  string            `json:"last_message,omitempty"`
	UpdatedAt    string            `json:"updated_at"`
}

type ParticipantView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// ListForUser returns the user's conversations, course-linked group chats
// first, then by updated_at descending (repository ordering).
func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]ConversationView, error) {
	convs, err := s.conversationRepo.GetUserConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		view, err := s.buildView(ctx, c)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID int64) (ConversationView, error) {
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return ConversationView{}, err
	}
	if !ok {
		return ConversationView{}, classline_errors.ErrNotParticipant
	}
	c, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return ConversationView{}, err
	}
	return s.buildView(ctx, c)
}

// CreatePrivate starts (or returns the existing) 1:1 conversation between
// two users.
func (s *ConversationService) CreatePrivate(ctx context.Context, creatorID, otherUserID int64) (ConversationView, error) {
	if creatorID == otherUserID {
		return ConversationView{}, classline_errors.ErrInvalidInput
	}
	if _, err := s.userRepo.GetByID(ctx, otherUserID); err != nil {
		return ConversationView{}, err
	}

	if existing, err := s.conversationRepo.GetDirectConversation(ctx, creatorID, otherUserID); err == nil {
		return s.buildView(ctx, existing)
	} else if !errors.Is(err, classline_errors.ErrNotFound) {
		return ConversationView{}, err
	}

	conv := &conversation.Conversation{
		Type:      conversation.TypePrivate,
		CreatedBy: sql.NullInt64{Int64: creatorID, Valid: true},
	}
	if err := s.conversationRepo.Create(ctx, conv, []int64{creatorID, otherUserID}); err != nil {
		return ConversationView{}, err
	}
	return s.buildView(ctx, *conv)
}

// EnsureCourseConversation auto-provisions the group chat for a course.
// Called on course creation and kept idempotent for enrollment flows.
func (s *ConversationService) EnsureCourseConversation(ctx context.Context, courseID, creatorID int64, subject string) (conversation.Conversation, error) {
	if existing, err := s.conversationRepo.GetByCourseID(ctx, courseID); err == nil {
		return existing, nil
	} else if !errors.Is(err, classline_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	conv := &conversation.Conversation{
		Type:      conversation.TypeGroup,
		CourseID:  sql.NullInt64{Int64: courseID, Valid: true},
		Subject:   sql.NullString{String: subject, Valid: subject != ""},
		CreatedBy: sql.NullInt64{Int64: creatorID, Valid: true},
	}
	if err := s.conversationRepo.Create(ctx, conv, []int64{creatorID}); err != nil {
		if errors.Is(err, classline_errors.ErrAlreadyExists) {
			return s.conversationRepo.GetByCourseID(ctx, courseID)
		}
		return conversation.Conversation{}, err
	}
	return *conv, nil
}

// UpdateSubject renames a group conversation. Course-linked conversations
// follow the course's archived gate.
func (s *ConversationService) UpdateSubject(ctx context.Context, conversationID, userID int64, subject string) (ConversationView, error) {
	if subject == "" {
		return ConversationView{}, classline_errors.ErrInvalidInput
	}
	c, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return ConversationView{}, err
	}
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return ConversationView{}, err
	}
	if !ok {
		return ConversationView{}, classline_errors.ErrNotParticipant
	}
	if c.CourseID.Valid {
		course, err := s.courseRepo.GetByID(ctx, c.CourseID.Int64)
		if err != nil {
			return ConversationView{}, err
		}
		if course.Archived() {
			return ConversationView{}, classline_errors.ErrCourseArchived
		}
	}

	if err := s.conversationRepo.UpdateSubject(ctx, conversationID, subject); err != nil {
		return ConversationView{}, err
	}
	c.Subject = sql.NullString{String: subject, Valid: true}
	return s.buildView(ctx, c)
}

func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	return s.conversationRepo.AddParticipant(ctx, conversationID, userID)
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	return s.conversationRepo.IsParticipant(ctx, conversationID, userID)
}

func (s *ConversationService) buildView(ctx context.Context, c conversation.Conversation) (ConversationView, error) {
	view := ConversationView{
		ID:        strconv.FormatInt(c.ID, 10),
		Type:      c.Type,
		Subject:   c.Subject.String,
		UpdatedAt: c.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if c.CourseID.Valid {
		view.CourseID = strconv.FormatInt(c.CourseID.Int64, 10)
		if course, err := s.courseRepo.GetByID(ctx, c.CourseID.Int64); err == nil {
			view.CourseStatus = course.Status
		}
	}

	participants, err := s.conversationRepo.GetParticipants(ctx, c.ID)
	if err != nil {
		return ConversationView{}, err
	}
	for _, p := range participants {
		view.Participants = append(view.Participants, ParticipantView{
			UserID:      strconv.FormatInt(p.UserID, 10),
			DisplayName: p.DisplayName,
		})
	}

	if latest, err := s.messageRepo.GetLatestMessage(ctx, c.ID); err == nil {
		view.LastMessage = latest.APIContent()
	} else if !errors.Is(err, classline_errors.ErrNotFound) {
		return ConversationView{}, err
	}
	return view, nil
}

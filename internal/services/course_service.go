package services

import (
	"context"
	"strings"

	"classline/internal/domain/course"
	"classline/internal/domain/user"
	"classline/internal/repository"
	classline_errors "classline/pkg/errors"
)

type CourseService struct {
	courseRepo    repository.CourseRepository
	userRepo      repository.UserRepository
	conversations *ConversationService
}

func NewCourseService(courseRepo repository.CourseRepository, userRepo repository.UserRepository, conversations *ConversationService) *CourseService {
	return &CourseService{
		courseRepo:    courseRepo,
		userRepo:      userRepo,
		conversations: conversations,
	}
}

type CreateCourseInput struct {
	Code    string
	Title   string
	OwnerID int64
}

// Create registers a course, enrolls the owner and auto-provisions the
// course group conversation.
func (s *CourseService) Create(ctx context.Context, in CreateCourseInput) (course.Course, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Title = strings.TrimSpace(in.Title)
	if in.Code == "" || in.Title == "" {
		return course.Course{}, classline_errors.ErrInvalidInput
	}
	owner, err := s.userRepo.GetByID(ctx, in.OwnerID)
	if err != nil {
		return course.Course{}, err
	}
	if owner.Role != user.RoleTeacher {
		return course.Course{}, classline_errors.ErrForbidden
	}

	c := &course.Course{
		Code:    in.Code,
		Title:   in.Title,
		Status:  course.StatusActive,
		OwnerID: in.OwnerID,
	}
	if err := s.courseRepo.Create(ctx, c); err != nil {
		return course.Course{}, err
	}

	if err := s.courseRepo.Enroll(ctx, &course.Enrollment{
		CourseID: c.ID,
		UserID:   in.OwnerID,
		Role:     user.RoleTeacher,
	}); err != nil {
		return course.Course{}, err
	}

	if _, err := s.conversations.EnsureCourseConversation(ctx, c.ID, in.OwnerID, c.Title); err != nil {
		return course.Course{}, err
	}
	return *c, nil
}

func (s *CourseService) Get(ctx context.Context, id int64) (course.Course, error) {
	return s.courseRepo.GetByID(ctx, id)
}

// Enroll adds a user to the course roster and to the course conversation.
func (s *CourseService) Enroll(ctx context.Context, courseID, userID int64) error {
	c, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if c.Archived() {
		return classline_errors.ErrCourseArchived
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.courseRepo.Enroll(ctx, &course.Enrollment{
		CourseID: courseID,
		UserID:   userID,
		Role:     u.Role,
	}); err != nil {
		return err
	}

	conv, err := s.conversations.EnsureCourseConversation(ctx, courseID, c.OwnerID, c.Title)
	if err != nil {
		return err
	}
	return s.conversations.AddParticipant(ctx, conv.ID, userID)
}

func (s *CourseService) Drop(ctx context.Context, courseID, userID int64) error {
	return s.courseRepo.Drop(ctx, courseID, userID)
}

func (s *CourseService) Roster(ctx context.Context, courseID, requesterID int64) ([]user.User, error) {
	enrolled, err := s.courseRepo.IsEnrolled(ctx, courseID, requesterID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, classline_errors.ErrForbidden
	}
	return s.courseRepo.GetRoster(ctx, courseID)
}

// Archive freezes the course: its conversation stays readable but rejects
// sends, reactions and typing from then on.
func (s *CourseService) Archive(ctx context.Context, courseID, requesterID int64) error {
	c, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if c.OwnerID != requesterID {
		return classline_errors.ErrForbidden
	}
	return s.courseRepo.UpdateStatus(ctx, courseID, course.StatusArchived)
}

func (s *CourseService) ListForUser(ctx context.Context, userID int64) ([]course.Course, error) {
	return s.courseRepo.GetUserCourses(ctx, userID)
}

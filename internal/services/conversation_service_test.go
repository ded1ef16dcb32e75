package services

import (
	"context"
	"errors"
	"testing"

	"classline/internal/domain/course"
	"classline/internal/domain/user"
	classline_errors "classline/pkg/errors"
)

type conversationServiceFixture struct {
	service  *ConversationService
	convRepo *memConversationRepo
	courses  *memCourseRepo
	users    *memUserRepo

	aliceID int64
	bobID   int64
}

func newConversationServiceFixture(t *testing.T) *conversationServiceFixture {
	t.Helper()

	convRepo := newMemConversationRepo()
	courseRepo := newMemCourseRepo()
	msgRepo := newMemMessageRepo()
	userRepo := newMemUserRepo()

	alice := &user.User{Email: "alice@classline.dev", DisplayName: "Alice", Role: user.RoleTeacher}
	bob := &user.User{Email: "bob@classline.dev", DisplayName: "Bob", Role: user.RoleStudent}
	for _, u := range []*user.User{alice, bob} {
		if err := userRepo.Create(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	return &conversationServiceFixture{
		service:  NewConversationService(convRepo, courseRepo, msgRepo, userRepo),
		convRepo: convRepo,
		courses:  courseRepo,
		users:    userRepo,
		aliceID:  alice.ID,
		bobID:    bob.ID,
	}
}

func TestCreatePrivateReusesExistingConversation(t *testing.T) {
	f := newConversationServiceFixture(t)
	ctx := context.Background()

	first, err := f.service.CreatePrivate(ctx, f.aliceID, f.bobID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(first.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(first.Participants))
	}

	// The same pair, in either order, maps onto one conversation.
	second, err := f.service.CreatePrivate(ctx, f.bobID, f.aliceID)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second create produced id %s, want %s", second.ID, first.ID)
	}
}

func TestCreatePrivateValidation(t *testing.T) {
	f := newConversationServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.CreatePrivate(ctx, f.aliceID, f.aliceID); !errors.Is(err, classline_errors.ErrInvalidInput) {
		t.Errorf("self conversation err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.service.CreatePrivate(ctx, f.aliceID, 999); !errors.Is(err, classline_errors.ErrNotFound) {
		t.Errorf("unknown peer err = %v, want ErrNotFound", err)
	}
}

func TestEnsureCourseConversationIsIdempotent(t *testing.T) {
	f := newConversationServiceFixture(t)
	ctx := context.Background()

	c := &course.Course{Code: "CS101", Title: "Intro", Status: course.StatusActive, OwnerID: f.aliceID}
	if err := f.courses.Create(ctx, c); err != nil {
		t.Fatalf("create course: %v", err)
	}

	first, err := f.service.EnsureCourseConversation(ctx, c.ID, f.aliceID, c.Title)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := f.service.EnsureCourseConversation(ctx, c.ID, f.aliceID, c.Title)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second ensure produced id %d, want %d", second.ID, first.ID)
	}
}

func TestUpdateSubject(t *testing.T) {
	f := newConversationServiceFixture(t)
	ctx := context.Background()

	c := &course.Course{Code: "CS101", Title: "Intro", Status: course.StatusActive, OwnerID: f.aliceID}
	if err := f.courses.Create(ctx, c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	conv, err := f.service.EnsureCourseConversation(ctx, c.ID, f.aliceID, c.Title)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	view, err := f.service.UpdateSubject(ctx, conv.ID, f.aliceID, "Intro (Fall)")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Subject != "Intro (Fall)" {
		t.Errorf("subject = %q", view.Subject)
	}

	// The rename must be visible on a fresh read, not just the returned view.
	stored, err := f.service.Get(ctx, conv.ID, f.aliceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Subject != "Intro (Fall)" {
		t.Errorf("stored subject = %q, want %q", stored.Subject, "Intro (Fall)")
	}

	if _, err := f.service.UpdateSubject(ctx, conv.ID, f.bobID, "Hijacked"); !errors.Is(err, classline_errors.ErrNotParticipant) {
		t.Errorf("non-participant err = %v, want ErrNotParticipant", err)
	}
	if _, err := f.service.UpdateSubject(ctx, conv.ID, f.aliceID, ""); !errors.Is(err, classline_errors.ErrInvalidInput) {
		t.Errorf("empty subject err = %v, want ErrInvalidInput", err)
	}
}

func TestUpdateSubjectArchivedCourse(t *testing.T) {
	f := newConversationServiceFixture(t)
	ctx := context.Background()

	c := &course.Course{Code: "CS101", Title: "Intro", Status: course.StatusActive, OwnerID: f.aliceID}
	if err := f.courses.Create(ctx, c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	conv, err := f.service.EnsureCourseConversation(ctx, c.ID, f.aliceID, c.Title)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := f.courses.UpdateStatus(ctx, c.ID, course.StatusArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := f.service.UpdateSubject(ctx, conv.ID, f.aliceID, "Too late"); !errors.Is(err, classline_errors.ErrCourseArchived) {
		t.Errorf("err = %v, want ErrCourseArchived", err)
	}
}

func TestListForUserReportsCourseStatus(t *testing.T) {
	f := newConversationServiceFixture(t)
	ctx := context.Background()

	c := &course.Course{Code: "CS101", Title: "Intro", Status: course.StatusActive, OwnerID: f.aliceID}
	if err := f.courses.Create(ctx, c); err != nil {
		t.Fatalf("create course: %v", err)
	}
	if _, err := f.service.EnsureCourseConversation(ctx, c.ID, f.aliceID, c.Title); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := f.service.CreatePrivate(ctx, f.aliceID, f.bobID); err != nil {
		t.Fatalf("create private: %v", err)
	}
	if err := f.courses.UpdateStatus(ctx, c.ID, course.StatusArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}

	views, err := f.service.ListForUser(ctx, f.aliceID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d conversations, want 2", len(views))
	}
	var courseView *ConversationView
	for i := range views {
		if views[i].CourseID != "" {
			courseView = &views[i]
		}
	}
	if courseView == nil {
		t.Fatal("course conversation missing from list")
	}
	if courseView.CourseStatus != course.StatusArchived {
		t.Errorf("course status = %q, want %q", courseView.CourseStatus, course.StatusArchived)
	}
}

package repository

import (
	"context"

	"classline/internal/domain/course"
	"classline/internal/domain/user"
	classline_errors "classline/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresCourseRepository struct {
	db *pgxpool.Pool
}

func NewCourseRepository(db *pgxpool.Pool) CourseRepository {
	return &PostgresCourseRepository{db: db}
}

func (r *PostgresCourseRepository) Create(ctx context.Context, c *course.Course) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO courses (code, title, status, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.Code, c.Title, c.Status, c.OwnerID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (r *PostgresCourseRepository) GetByID(ctx context.Context, id int64) (course.Course, error) {
	var c course.Course
	err := r.db.QueryRow(ctx,
		`SELECT id, code, title, status, owner_id, created_at, updated_at
		 FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.Code, &c.Title, &c.Status, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return course.Course{}, mapError(err)
	}
	return c, nil
}

func (r *PostgresCourseRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE courses SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCourseRepository) Enroll(ctx context.Context, e *course.Enrollment) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO enrollments (course_id, user_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (course_id, user_id) DO UPDATE SET dropped_at = NULL
		 RETURNING enrolled_at`,
		e.CourseID, e.UserID, e.Role,
	).Scan(&e.EnrolledAt)
	return mapError(err)
}

func (r *PostgresCourseRepository) Drop(ctx context.Context, courseID, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE enrollments SET dropped_at = now()
		 WHERE course_id = $1 AND user_id = $2 AND dropped_at IS NULL`,
		courseID, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresCourseRepository) GetRoster(ctx context.Context, courseID int64) ([]user.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.email, u.password_hash, u.display_name, u.role, u.avatar_url, u.created_at, u.updated_at
		 FROM users u
		 JOIN enrollments e ON e.user_id = u.id
		 WHERE e.course_id = $1 AND e.dropped_at IS NULL
		 ORDER BY u.display_name`, courseID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var roster []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Role, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		roster = append(roster, u)
	}
	return roster, rows.Err()
}

func (r *PostgresCourseRepository) IsEnrolled(ctx context.Context, courseID, userID int64) (bool, error) {
	var enrolled bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM enrollments
		   WHERE course_id = $1 AND user_id = $2 AND dropped_at IS NULL
		 )`, courseID, userID,
	).Scan(&enrolled)
	return enrolled, mapError(err)
}

func (r *PostgresCourseRepository) GetUserCourses(ctx context.Context, userID int64) ([]course.Course, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.code, c.title, c.status, c.owner_id, c.created_at, c.updated_at
		 FROM courses c
		 JOIN enrollments e ON e.course_id = c.id
		 WHERE e.user_id = $1 AND e.dropped_at IS NULL
		 ORDER BY c.code`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var courses []course.Course
	for rows.Next() {
		var c course.Course
		if err := rows.Scan(&c.ID, &c.Code, &c.Title, &c.Status, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

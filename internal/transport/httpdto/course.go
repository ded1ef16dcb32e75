package httpdto

import (
	"strconv"
	"time"

	"classline/internal/domain/course"
)

type CreateCourseRequest struct {
	Code  string `json:"code" binding:"required"`
	Title string `json:"title" binding:"required"`
}

type CourseResponse struct {
	ID        string `json:"course_id"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at"`
}

func ToCourseResponse(c course.Course) CourseResponse {
	return CourseResponse{
		ID:        strconv.FormatInt(c.ID, 10),
		Code:      c.Code,
		Title:     c.Title,
		Status:    c.Status,
		OwnerID:   strconv.FormatInt(c.OwnerID, 10),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func ToCourseResponses(courses []course.Course) []CourseResponse {
	out := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, ToCourseResponse(c))
	}
	return out
}

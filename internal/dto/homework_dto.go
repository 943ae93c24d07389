package dto

import (
	"time"

	"github.com/noah-isme/hifz-api/internal/models"
)

// HomeworkCreateRequest describes a new highlighted memorization range.
type HomeworkCreateRequest struct {
	StudentID uint   `json:"student_id" validate:"required,gt=0"`
	Surah     int    `json:"surah" validate:"required,min=1,max=114"`
	AyahStart int    `json:"ayah_start" validate:"required,min=1"`
	AyahEnd   int    `json:"ayah_end" validate:"required,gtefield=AyahStart"`
	Page      int    `json:"page" validate:"omitempty,min=1,max=604"`
	Note      string `json:"note" validate:"omitempty,max=2000"`
}

// HomeworkListQuery filters homework listings.
type HomeworkListQuery struct {
	StudentID *uint  `query:"student_id"`
	Color     string `query:"color" validate:"omitempty,oneof=green gold"`
}

// HomeworkResponse is the serialized homework highlight.
type HomeworkResponse struct {
	ID          uint       `json:"id"`
	SchoolID    uint       `json:"school_id"`
	StudentID   uint       `json:"student_id"`
	TeacherID   uint       `json:"teacher_id"`
	Surah       int        `json:"surah"`
	AyahStart   int        `json:"ayah_start"`
	AyahEnd     int        `json:"ayah_end"`
	Page        int        `json:"page,omitempty"`
	Note        string     `json:"note,omitempty"`
	Color       string     `json:"color"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
	CompletedBy *uint      `json:"completed_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewHomeworkResponse converts a model into a DTO.
func NewHomeworkResponse(model models.Homework) HomeworkResponse {
	status := "pending"
	if model.CompletedAt != nil {
		status = "completed"
	}

	return HomeworkResponse{
		ID:          model.ID,
		SchoolID:    model.SchoolID,
		StudentID:   model.StudentID,
		TeacherID:   model.TeacherID,
		Surah:       model.Surah,
		AyahStart:   model.AyahStart,
		AyahEnd:     model.AyahEnd,
		Page:        model.Page,
		Note:        model.Note,
		Color:       string(model.Color),
		Status:      status,
		CompletedAt: model.CompletedAt,
		CompletedBy: model.CompletedBy,
		CreatedAt:   model.CreatedAt,
	}
}

// NewHomeworkResponseSlice converts homework models into DTOs.
func NewHomeworkResponseSlice(items []models.Homework) []HomeworkResponse {
	out := make([]HomeworkResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewHomeworkResponse(item))
	}
	return out
}

package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/hifz-api/internal/workflow"
)

// Assignment is a piece of work given to one student in a class.
type Assignment struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	SchoolID       uint                        `gorm:"not null;index" json:"school_id"`
	ClassID        uint                        `gorm:"not null;index" json:"class_id"`
	StudentID      uint                        `gorm:"not null;index" json:"student_id"`
	TeacherID      uint                        `gorm:"not null" json:"teacher_id"`
	Title          string                      `gorm:"size:255;not null" json:"title"`
	Description    string                      `gorm:"type:text" json:"description"`
	DueDate        *time.Time                  `json:"due_date"`
	Status         workflow.AssignmentStatus   `gorm:"size:16;not null;index" json:"status"`
	SubmissionText string                      `gorm:"type:text" json:"submission_text"`
	Attachments    datatypes.JSONSlice[string] `json:"attachments"`
	Feedback       string                      `gorm:"type:text" json:"feedback"`
	ReopenCount    int                         `gorm:"not null;default:0" json:"reopen_count"`
	ReopenReason   string                      `gorm:"type:text" json:"reopen_reason"`
	AssignedAt     time.Time                   `json:"assigned_at"`
	ViewedAt       *time.Time                  `json:"viewed_at"`
	SubmittedAt    *time.Time                  `json:"submitted_at"`
	ReviewedAt     *time.Time                  `json:"reviewed_at"`
	CompletedAt    *time.Time                  `json:"completed_at"`
	ReopenedAt     *time.Time                  `json:"reopened_at"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}

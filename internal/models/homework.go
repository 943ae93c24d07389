package models

import (
	"time"

	"github.com/noah-isme/hifz-api/internal/workflow"
)

// Homework is a memorization task shown as a highlighted range on the mushaf.
type Homework struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	SchoolID    uint                   `gorm:"not null;index" json:"school_id"`
	StudentID   uint                   `gorm:"not null;index" json:"student_id"`
	TeacherID   uint                   `gorm:"not null" json:"teacher_id"`
	Surah       int                    `gorm:"not null" json:"surah"`
	AyahStart   int                    `gorm:"not null" json:"ayah_start"`
	AyahEnd     int                    `gorm:"not null" json:"ayah_end"`
	Page        int                    `json:"page"`
	Note        string                 `gorm:"type:text" json:"note"`
	Color       workflow.HomeworkColor `gorm:"size:16;not null;index" json:"color"`
	CompletedAt *time.Time             `json:"completed_at"`
	CompletedBy *uint                  `json:"completed_by"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

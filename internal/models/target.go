package models

import (
	"time"

	"github.com/noah-isme/hifz-api/internal/workflow"
)

// Target is a memorization goal for a student, a class or the whole school.
type Target struct {
	ID           uint                  `gorm:"primaryKey" json:"id"`
	SchoolID     uint                  `gorm:"not null;index" json:"school_id"`
	Scope        workflow.TargetScope  `gorm:"size:16;not null" json:"scope"`
	StudentID    *uint                 `gorm:"index" json:"student_id"`
	ClassID      *uint                 `gorm:"index" json:"class_id"`
	CreatedBy    uint                  `gorm:"not null" json:"created_by"`
	Title        string                `gorm:"size:255;not null" json:"title"`
	Description  string                `gorm:"type:text" json:"description"`
	Status       workflow.TargetStatus `gorm:"size:16;not null;index" json:"status"`
	Progress     int                   `gorm:"not null;default:0" json:"progress"`
	DueDate      *time.Time            `json:"due_date"`
	CompletedAt  *time.Time            `json:"completed_at"`
	CancelledAt  *time.Time            `json:"cancelled_at"`
	CancelReason string                `gorm:"type:text" json:"cancel_reason"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Milestones   []TargetMilestone     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"milestones"`
}

// TargetMilestone is an ordered checkpoint inside a target.
type TargetMilestone struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TargetID    uint       `gorm:"not null;index" json:"target_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	OrderIndex  int        `gorm:"not null" json:"order_index"`
	Completed   bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

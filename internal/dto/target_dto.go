package dto

import (
	"time"

	"github.com/noah-isme/hifz-api/internal/models"
)

// TargetCreateRequest describes a new memorization target.
type TargetCreateRequest struct {
	Scope       string   `json:"scope" validate:"required,oneof=individual class school"`
	StudentID   *uint    `json:"student_id" validate:"required_if=Scope individual,omitempty,gt=0"`
	ClassID     *uint    `json:"class_id" validate:"required_if=Scope class,omitempty,gt=0"`
	Title       string   `json:"title" validate:"required,min=3,max=255"`
	Description string   `json:"description" validate:"omitempty,max=5000"`
	DueDate     string   `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Milestones  []string `json:"milestones" validate:"omitempty,max=20,dive,required,max=255"`
}

// TargetListQuery filters target listings.
type TargetListQuery struct {
	Scope     string `query:"scope" validate:"omitempty,oneof=individual class school"`
	Status    string `query:"status" validate:"omitempty,oneof=active completed cancelled"`
	StudentID *uint  `query:"student_id"`
	ClassID   *uint  `query:"class_id"`
}

// TargetProgressRequest sets a target's completion percentage. Out of range values are clamped.
type TargetProgressRequest struct {
	Progress *int `json:"progress" validate:"required"`
}

// TargetCancelRequest carries the mandatory cancellation reason.
type TargetCancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// MilestoneCreateRequest appends a milestone to a target.
type MilestoneCreateRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
}

// MilestoneToggleRequest flips a milestone's completion flag.
type MilestoneToggleRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// MilestoneResponse is the serialized milestone.
type MilestoneResponse struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	OrderIndex  int        `json:"order_index"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TargetResponse is the serialized target with its ordered milestones.
type TargetResponse struct {
	ID           uint                `json:"id"`
	SchoolID     uint                `json:"school_id"`
	Scope        string              `json:"scope"`
	StudentID    *uint               `json:"student_id"`
	ClassID      *uint               `json:"class_id"`
	CreatedBy    uint                `json:"created_by"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Status       string              `json:"status"`
	Progress     int                 `json:"progress"`
	DueDate      *time.Time          `json:"due_date"`
	CompletedAt  *time.Time          `json:"completed_at"`
	CancelledAt  *time.Time          `json:"cancelled_at"`
	CancelReason string              `json:"cancel_reason,omitempty"`
	Milestones   []MilestoneResponse `json:"milestones"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewMilestoneResponse converts a milestone model into a DTO.
func NewMilestoneResponse(model models.TargetMilestone) MilestoneResponse {
	return MilestoneResponse{
		ID:          model.ID,
		Title:       model.Title,
		OrderIndex:  model.OrderIndex,
		Completed:   model.Completed,
		CompletedAt: model.CompletedAt,
	}
}

// NewTargetResponse converts a target model into a DTO.
func NewTargetResponse(model models.Target) TargetResponse {
	milestones := make([]MilestoneResponse, 0, len(model.Milestones))
	for _, milestone := range model.Milestones {
		milestones = append(milestones, NewMilestoneResponse(milestone))
	}

	return TargetResponse{
		ID:           model.ID,
		SchoolID:     model.SchoolID,
		Scope:        string(model.Scope),
		StudentID:    model.StudentID,
		ClassID:      model.ClassID,
		CreatedBy:    model.CreatedBy,
		Title:        model.Title,
		Description:  model.Description,
		Status:       string(model.Status),
		Progress:     model.Progress,
		DueDate:      model.DueDate,
		CompletedAt:  model.CompletedAt,
		CancelledAt:  model.CancelledAt,
		CancelReason: model.CancelReason,
		Milestones:   milestones,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewTargetResponseSlice converts target models into DTOs.
func NewTargetResponseSlice(items []models.Target) []TargetResponse {
	out := make([]TargetResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewTargetResponse(item))
	}
	return out
}

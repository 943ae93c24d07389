package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	ClassID     uint   `json:"class_id" validate:"required,gt=0"`
	StudentID   uint   `json:"student_id" validate:"required,gt=0"`
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentTransitionRequest is the body of POST /assignments/:id/transition. Only the fields
// relevant to Action are read.
type AssignmentTransitionRequest struct {
	Action      string   `json:"action" validate:"required,oneof=view submit review complete reopen"`
	Text        string   `json:"text" validate:"omitempty,max=20000"`
	Attachments []string `json:"attachments" validate:"omitempty,max=10,dive,url"`
	Feedback    string   `json:"feedback" validate:"omitempty,max=5000"`
	Reason      string   `json:"reason" validate:"omitempty,max=1000"`
}

// Command converts the validated payload into its tagged workflow variant.
func (r AssignmentTransitionRequest) Command() (workflow.AssignmentCommand, error) {
	switch workflow.AssignmentAction(strings.ToLower(strings.TrimSpace(r.Action))) {
	case workflow.ActionView:
		return workflow.ViewAssignment{}, nil
	case workflow.ActionSubmit:
		return workflow.SubmitAssignment{Text: r.Text, Attachments: r.Attachments}, nil
	case workflow.ActionReview:
		return workflow.ReviewAssignment{Feedback: r.Feedback}, nil
	case workflow.ActionComplete:
		return workflow.CompleteAssignment{}, nil
	case workflow.ActionReopen:
		return workflow.ReopenAssignment{Reason: r.Reason}, nil
	default:
		return nil, &workflow.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", r.Action)}
	}
}

// AssignmentListQuery describes query string filters for listing assignments.
type AssignmentListQuery struct {
	ClassID   *uint  `query:"class_id"`
	StudentID *uint  `query:"student_id"`
	Status    string `query:"status" validate:"omitempty,oneof=assigned viewed submitted reviewed completed reopened"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID             uint       `json:"id"`
	SchoolID       uint       `json:"school_id"`
	ClassID        uint       `json:"class_id"`
	StudentID      uint       `json:"student_id"`
	TeacherID      uint       `json:"teacher_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date"`
	Status         string     `json:"status"`
	SubmissionText string     `json:"submission_text,omitempty"`
	Attachments    []string   `json:"attachments"`
	Feedback       string     `json:"feedback,omitempty"`
	ReopenCount    int        `json:"reopen_count"`
	ReopenReason   string     `json:"reopen_reason,omitempty"`
	AssignedAt     time.Time  `json:"assigned_at"`
	ViewedAt       *time.Time `json:"viewed_at"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	ReopenedAt     *time.Time `json:"reopened_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AssignmentListResponse wraps a page of assignments.
type AssignmentListResponse struct {
	Items []AssignmentResponse `json:"items"`
	Total int64                `json:"total"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	attachments := []string(model.Attachments)
	if attachments == nil {
		attachments = []string{}
	}

	return AssignmentResponse{
		ID:             model.ID,
		SchoolID:       model.SchoolID,
		ClassID:        model.ClassID,
		StudentID:      model.StudentID,
		TeacherID:      model.TeacherID,
		Title:          model.Title,
		Description:    model.Description,
		DueDate:        model.DueDate,
		Status:         string(model.Status),
		SubmissionText: model.SubmissionText,
		Attachments:    attachments,
		Feedback:       model.Feedback,
		ReopenCount:    model.ReopenCount,
		ReopenReason:   model.ReopenReason,
		AssignedAt:     model.AssignedAt,
		ViewedAt:       model.ViewedAt,
		SubmittedAt:    model.SubmittedAt,
		ReviewedAt:     model.ReviewedAt,
		CompletedAt:    model.CompletedAt,
		ReopenedAt:     model.ReopenedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}

// AttachmentResponse is returned after an attachment upload.
type AttachmentResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

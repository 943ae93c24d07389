package dto

import (
	"time"

	"github.com/noah-isme/hifz-api/internal/models"
)

// NotificationCreateRequest describes the payload to create a notification.
type NotificationCreateRequest struct {
	SchoolID uint   `json:"school_id" validate:"required,gt=0"`
	UserID   string `json:"user_id" validate:"required,max=64"`
	Type     string `json:"type" validate:"required,max=64"`
	Message  string `json:"message" validate:"required,min=1,max=2000"`
}

// NotificationListQuery filters a user's notification feed.
type NotificationListQuery struct {
	Unread bool `query:"unread"`
	Limit  int  `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int  `query:"offset" validate:"omitempty,min=0"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	SchoolID  uint      `json:"school_id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		SchoolID:  model.SchoolID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts models to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, model := range items {
		out = append(out, NewNotificationResponse(model))
	}
	return out
}

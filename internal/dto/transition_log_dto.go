package dto

import (
	"time"

	"github.com/noah-isme/hifz-api/internal/models"
)

// TransitionLogResponse is one entry of an entity's transition history.
type TransitionLogResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	EntityType string                 `json:"entity_type"`
	EntityID   uint                   `json:"entity_id"`
	Action     string                 `json:"action"`
	FromStatus string                 `json:"from_status"`
	ToStatus   string                 `json:"to_status"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewTransitionLogResponseSlice converts audit rows into DTOs.
func NewTransitionLogResponseSlice(entries []models.TransitionLog) []TransitionLogResponse {
	out := make([]TransitionLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, TransitionLogResponse{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Action:     entry.Action,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Metadata:   map[string]interface{}(entry.Metadata),
			CreatedAt:  entry.CreatedAt,
		})
	}
	return out
}

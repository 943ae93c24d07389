package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransitionLog is the audit trail of accepted state transitions.
type TransitionLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	SchoolID   uint              `gorm:"not null;index" json:"school_id"`
	ActorID    uint              `gorm:"not null" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	EntityType string            `gorm:"size:32;not null;index:idx_transition_entity" json:"entity_type"`
	EntityID   uint              `gorm:"not null;index:idx_transition_entity" json:"entity_id"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	FromStatus string            `gorm:"size:16" json:"from_status"`
	ToStatus   string            `gorm:"size:16" json:"to_status"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

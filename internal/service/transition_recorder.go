package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/hifz-api/internal/dto"
	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/repository"
)

// Entity types written to the transition log.
const (
	EntityAssignment = "assignment"
	EntityHomework   = "homework"
	EntityTarget     = "target"
)

// TransitionEntry captures the details required to persist an audit entry.
type TransitionEntry struct {
	Actor      Actor
	EntityType string
	EntityID   uint
	Action     string
	From       string
	To         string
	Metadata   map[string]interface{}
}

// TransitionRecorder persists and reads the audit trail of accepted transitions.
type TransitionRecorder interface {
	Record(ctx context.Context, entry TransitionEntry) error
	History(ctx context.Context, schoolID uint, entityType string, entityID uint) ([]dto.TransitionLogResponse, error)
}

type transitionRecorder struct {
	repo   repository.TransitionLogRepository
	logger zerolog.Logger
}

// NewTransitionRecorder constructs the transition log recorder.
func NewTransitionRecorder(repo repository.TransitionLogRepository, logger zerolog.Logger) TransitionRecorder {
	return &transitionRecorder{
		repo:   repo,
		logger: logger.With().Str("component", "transition_recorder").Logger(),
	}
}

func (r *transitionRecorder) Record(ctx context.Context, entry TransitionEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return fmt.Errorf("entity type is required")
	}

	model := models.TransitionLog{
		SchoolID:   entry.Actor.SchoolID,
		ActorID:    entry.Actor.UserID,
		ActorRole:  normalizeRole(string(entry.Actor.Role)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		FromStatus: entry.From,
		ToStatus:   entry.To,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := r.repo.Create(ctx, &model); err != nil {
		r.logger.Error().Err(err).Str("entity_type", model.EntityType).Uint("entity_id", model.EntityID).Msg("failed to persist transition log")
		return err
	}

	return nil
}

func (r *transitionRecorder) History(ctx context.Context, schoolID uint, entityType string, entityID uint) ([]dto.TransitionLogResponse, error) {
	entries, _, err := r.repo.List(ctx, repository.TransitionLogFilter{
		SchoolID:   schoolID,
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewTransitionLogResponseSlice(entries), nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

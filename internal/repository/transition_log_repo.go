package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/models"
)

// TransitionLogFilter narrows audit trail queries.
type TransitionLogFilter struct {
	SchoolID   uint
	EntityType string
	EntityID   uint
	ActorID    *uint
	Page       int
	PageSize   int
}

// TransitionLogRepository persists the audit trail of transitions.
type TransitionLogRepository interface {
	Create(ctx context.Context, entry *models.TransitionLog) error
	List(ctx context.Context, filter TransitionLogFilter) ([]models.TransitionLog, int64, error)
}

type transitionLogRepository struct {
	db *gorm.DB
}

// NewTransitionLogRepository constructs the transition log repository.
func NewTransitionLogRepository(db *gorm.DB) TransitionLogRepository {
	return &transitionLogRepository{db: db}
}

func (r *transitionLogRepository) Create(ctx context.Context, entry *models.TransitionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *transitionLogRepository) List(ctx context.Context, filter TransitionLogFilter) ([]models.TransitionLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TransitionLog{}).Where("school_id = ?", filter.SchoolID)

	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var entries []models.TransitionLog
	if err := query.Order("created_at ASC").Order("id ASC").Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// AssignmentFilter narrows assignment listings. Empty slices mean "no restriction" unless
// Restrict is set, in which case an empty slice matches nothing.
type AssignmentFilter struct {
	SchoolID   uint
	ClassIDs   []uint
	StudentIDs []uint
	Restrict   bool
	Status     string
	Page       int
	PageSize   int
}

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Transition(ctx context.Context, id uint, expected workflow.AssignmentStatus, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{}).Where("school_id = ?", filter.SchoolID)

	if filter.Restrict && len(filter.ClassIDs) == 0 && len(filter.StudentIDs) == 0 {
		return []models.Assignment{}, 0, nil
	}
	if len(filter.ClassIDs) > 0 {
		query = query.Where("class_id IN ?", filter.ClassIDs)
	}
	if len(filter.StudentIDs) > 0 {
		query = query.Where("student_id IN ?", filter.StudentIDs)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var assignments []models.Assignment
	if err := query.Order("assigned_at DESC").Order("id DESC").Find(&assignments).Error; err != nil {
		return nil, 0, err
	}

	return assignments, total, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Transition(ctx context.Context, id uint, expected workflow.AssignmentStatus, updates map[string]interface{}) error {
	return CompareAndSwap(ctx, r.db, &models.Assignment{}, id, "status", string(expected), updates)
}

func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	deletable := []string{string(workflow.AssignmentAssigned), string(workflow.AssignmentViewed)}
	return DeleteIfIn(ctx, r.db, &models.Assignment{}, id, "status", deletable)
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}

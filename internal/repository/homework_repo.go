package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// HomeworkFilter narrows homework listings.
type HomeworkFilter struct {
	SchoolID   uint
	StudentIDs []uint
	Restrict   bool
	Color      string
}

// HomeworkRepository defines persistence operations for homework highlights.
type HomeworkRepository interface {
	List(ctx context.Context, filter HomeworkFilter) ([]models.Homework, error)
	GetByID(ctx context.Context, id uint) (models.Homework, error)
	Create(ctx context.Context, homework *models.Homework) error
	Transition(ctx context.Context, id uint, expected workflow.HomeworkColor, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

type homeworkRepository struct {
	db *gorm.DB
}

// NewHomeworkRepository instantiates a GORM-backed repository.
func NewHomeworkRepository(db *gorm.DB) HomeworkRepository {
	return &homeworkRepository{db: db}
}

func (r *homeworkRepository) List(ctx context.Context, filter HomeworkFilter) ([]models.Homework, error) {
	if filter.Restrict && len(filter.StudentIDs) == 0 {
		return []models.Homework{}, nil
	}

	query := r.db.WithContext(ctx).Model(&models.Homework{}).Where("school_id = ?", filter.SchoolID)
	if len(filter.StudentIDs) > 0 {
		query = query.Where("student_id IN ?", filter.StudentIDs)
	}
	if filter.Color != "" {
		query = query.Where("color = ?", filter.Color)
	}

	var homework []models.Homework
	if err := query.Order("surah ASC").Order("ayah_start ASC").Find(&homework).Error; err != nil {
		return nil, err
	}
	return homework, nil
}

func (r *homeworkRepository) GetByID(ctx context.Context, id uint) (models.Homework, error) {
	var homework models.Homework
	if err := r.db.WithContext(ctx).First(&homework, id).Error; err != nil {
		return models.Homework{}, err
	}
	return homework, nil
}

func (r *homeworkRepository) Create(ctx context.Context, homework *models.Homework) error {
	return r.db.WithContext(ctx).Create(homework).Error
}

func (r *homeworkRepository) Transition(ctx context.Context, id uint, expected workflow.HomeworkColor, updates map[string]interface{}) error {
	return CompareAndSwap(ctx, r.db, &models.Homework{}, id, "color", string(expected), updates)
}

func (r *homeworkRepository) Delete(ctx context.Context, id uint) error {
	return DeleteIfIn(ctx, r.db, &models.Homework{}, id, "color", []string{string(workflow.HomeworkPending)})
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// TargetFilter narrows target listings. Audience rows (school scope, or class scope for the
// listed classes) are included alongside individually assigned ones.
type TargetFilter struct {
	SchoolID   uint
	Scope      string
	Status     string
	ClassIDs   []uint
	StudentIDs []uint
	Restrict   bool
}

// TargetRepository defines persistence operations for targets and their milestones.
type TargetRepository interface {
	List(ctx context.Context, filter TargetFilter) ([]models.Target, error)
	GetByID(ctx context.Context, id uint) (models.Target, error)
	Create(ctx context.Context, target *models.Target) error
	Transition(ctx context.Context, id uint, expected workflow.TargetStatus, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	AddMilestone(ctx context.Context, targetID uint, title string, decide func(target models.Target, orders []int) (int, error)) (models.TargetMilestone, error)
	SetMilestoneCompleted(ctx context.Context, targetID, milestoneID uint, completed bool, at time.Time, guard func(target models.Target) error) (models.TargetMilestone, error)
}

type targetRepository struct {
	db *gorm.DB
}

// NewTargetRepository instantiates a GORM-backed repository.
func NewTargetRepository(db *gorm.DB) TargetRepository {
	return &targetRepository{db: db}
}

func (r *targetRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Target{}).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		})
}

func (r *targetRepository) List(ctx context.Context, filter TargetFilter) ([]models.Target, error) {
	query := r.baseQuery(ctx).Where("school_id = ?", filter.SchoolID)

	if filter.Scope != "" {
		query = query.Where("scope = ?", filter.Scope)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.Restrict {
		audience := r.db.Where("scope = ?", string(workflow.ScopeSchool))
		if len(filter.ClassIDs) > 0 {
			audience = audience.Or("scope = ? AND class_id IN ?", string(workflow.ScopeClass), filter.ClassIDs)
		}
		if len(filter.StudentIDs) > 0 {
			audience = audience.Or("scope = ? AND student_id IN ?", string(workflow.ScopeIndividual), filter.StudentIDs)
		}
		query = query.Where(audience)
	}

	var targets []models.Target
	if err := query.Order("created_at DESC").Order("id DESC").Find(&targets).Error; err != nil {
		return nil, err
	}
	return targets, nil
}

func (r *targetRepository) GetByID(ctx context.Context, id uint) (models.Target, error) {
	var target models.Target
	if err := r.baseQuery(ctx).First(&target, id).Error; err != nil {
		return models.Target{}, err
	}
	return target, nil
}

func (r *targetRepository) Create(ctx context.Context, target *models.Target) error {
	return r.db.WithContext(ctx).Create(target).Error
}

func (r *targetRepository) Transition(ctx context.Context, id uint, expected workflow.TargetStatus, updates map[string]interface{}) error {
	return CompareAndSwap(ctx, r.db, &models.Target{}, id, "status", string(expected), updates)
}

func (r *targetRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_id = ?", id).Delete(&models.TargetMilestone{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Target{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *targetRepository) AddMilestone(ctx context.Context, targetID uint, title string, decide func(target models.Target, orders []int) (int, error)) (models.TargetMilestone, error) {
	var milestone models.TargetMilestone
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := lockTarget(tx, targetID)
		if err != nil {
			return err
		}

		var orders []int
		if err := tx.Model(&models.TargetMilestone{}).Where("target_id = ?", targetID).Pluck("order_index", &orders).Error; err != nil {
			return err
		}

		order, err := decide(target, orders)
		if err != nil {
			return err
		}

		milestone = models.TargetMilestone{TargetID: targetID, Title: title, OrderIndex: order}
		return tx.Create(&milestone).Error
	})
	if err != nil {
		return models.TargetMilestone{}, err
	}
	return milestone, nil
}

func (r *targetRepository) SetMilestoneCompleted(ctx context.Context, targetID, milestoneID uint, completed bool, at time.Time, guard func(target models.Target) error) (models.TargetMilestone, error) {
	var milestone models.TargetMilestone
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := lockTarget(tx, targetID)
		if err != nil {
			return err
		}
		if err := guard(target); err != nil {
			return err
		}

		if err := tx.Where("target_id = ?", targetID).First(&milestone, milestoneID).Error; err != nil {
			return err
		}

		milestone.Completed = completed
		milestone.CompletedAt = nil
		if completed {
			stamp := at
			milestone.CompletedAt = &stamp
		}

		return tx.Model(&milestone).Updates(map[string]interface{}{
			"completed":    milestone.Completed,
			"completed_at": milestone.CompletedAt,
		}).Error
	})
	if err != nil {
		return models.TargetMilestone{}, err
	}
	return milestone, nil
}

// lockTarget reads the target row for update. SQLite has no row locks and serialises writers on its own.
func lockTarget(tx *gorm.DB, id uint) (models.Target, error) {
	query := tx
	if tx.Dialector.Name() != "sqlite" {
		query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var target models.Target
	if err := query.First(&target, id).Error; err != nil {
		return models.Target{}, err
	}
	return target, nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/models"
)

// DirectoryRepository answers the relationship questions behind permission checks.
type DirectoryRepository interface {
	GetClass(ctx context.Context, id uint) (models.Class, error)
	GetStudent(ctx context.Context, id uint) (models.Student, error)
	ClassIDsByTeacher(ctx context.Context, teacherID uint) ([]uint, error)
	StudentIDsByParent(ctx context.Context, parentID uint) ([]uint, error)
	IsGuardian(ctx context.Context, parentID, studentID uint) (bool, error)
	StudentIDsInClasses(ctx context.Context, classIDs []uint) ([]uint, error)
	ClassIDsOfStudents(ctx context.Context, studentIDs []uint) ([]uint, error)
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository instantiates a GORM-backed directory.
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetClass(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *directoryRepository) GetStudent(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *directoryRepository) ClassIDsByTeacher(ctx context.Context, teacherID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Class{}).Where("teacher_id = ?", teacherID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *directoryRepository) StudentIDsByParent(ctx context.Context, parentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Guardian{}).Where("parent_id = ?", parentID).Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *directoryRepository) IsGuardian(ctx context.Context, parentID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Guardian{}).
		Where("parent_id = ? AND student_id = ?", parentID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *directoryRepository) StudentIDsInClasses(ctx context.Context, classIDs []uint) ([]uint, error) {
	if len(classIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Where("class_id IN ?", classIDs).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *directoryRepository) ClassIDsOfStudents(ctx context.Context, studentIDs []uint) ([]uint, error) {
	if len(studentIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("id IN ?", studentIDs).
		Distinct("class_id").
		Pluck("class_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

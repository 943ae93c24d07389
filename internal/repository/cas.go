package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrStaleState is returned when a conditional write finds the row no longer in the expected state.
var ErrStaleState = errors.New("stale state")

// CompareAndSwap applies updates to the row of model with the given id only while column still
// equals expected. Zero affected rows resolve to gorm.ErrRecordNotFound when the row is gone and
// to ErrStaleState when another writer moved it first.
func CompareAndSwap(ctx context.Context, db *gorm.DB, model interface{}, id uint, column string, expected interface{}, updates map[string]interface{}) error {
	result := db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Where(column+" = ?", expected).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	return missingOrStale(ctx, db, model, id)
}

// DeleteIfIn removes the row only while column holds one of allowed.
func DeleteIfIn(ctx context.Context, db *gorm.DB, model interface{}, id uint, column string, allowed interface{}) error {
	result := db.WithContext(ctx).
		Where("id = ?", id).
		Where(column+" IN ?", allowed).
		Delete(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	return missingOrStale(ctx, db, model, id)
}

func missingOrStale(ctx context.Context, db *gorm.DB, model interface{}, id uint) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleState
}

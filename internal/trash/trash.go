// Package trash implements the soft-delete lifecycle shared by users,
// projects and tasks: Active -> Trashed -> Active (restore) or Gone
// (force delete, terminal).
package trash

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
)

// Store runs the lifecycle for one entity kind. T must be a GORM model with
// a gorm.DeletedAt column, so default queries already exclude trashed rows.
type Store[T any] struct {
	db   *gorm.DB
	name string
}

// NewStore returns a Store bound to db. name is the entity's display name
// used in error messages ("Task", "Project", "User"). Pass a transaction
// handle to make lifecycle steps part of a larger atomic operation.
func NewStore[T any](db *gorm.DB, name string) *Store[T] {
	return &Store[T]{db: db, name: name}
}

// SoftDelete trashes the entity with the given id. Trashing an entity that
// is already trashed is a no-op success.
func (s *Store[T]) SoftDelete(id uint) error {
	if err := s.db.Delete(new(T), id).Error; err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Restore clears the deletion timestamp of a trashed entity and returns the
// revived row. It fails with NotFound when no trashed entity has that id.
func (s *Store[T]) Restore(id uint) (*T, error) {
	var entity T

	err := s.db.Unscoped().Where("deleted_at IS NOT NULL").First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("%s not found.", s.name))
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := s.db.Unscoped().Model(&entity).Update("deleted_at", nil).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	var restored T
	if err := s.db.First(&restored, id).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &restored, nil
}

// ForceDelete permanently removes a trashed entity. Calling it on a live
// entity fails with InvalidState so that live data can never be dropped by
// accident; an unknown id fails with NotFound.
func (s *Store[T]) ForceDelete(id uint) error {
	var entity T

	err := s.db.Unscoped().First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(fmt.Sprintf("%s not found.", s.name))
	}
	if err != nil {
		return apperr.Internal(err)
	}

	err = s.db.Unscoped().Where("deleted_at IS NOT NULL").First(new(T), id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.InvalidState(fmt.Sprintf("%s must be trashed before it can be permanently deleted.", s.name))
	}
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.db.Unscoped().Delete(&entity).Error; err != nil {
		return apperr.Internal(err)
	}

	return nil
}

// ListTrashed returns every entity whose deletion timestamp is set.
func (s *Store[T]) ListTrashed() ([]T, error) {
	var entities []T
	if err := s.db.Unscoped().Where("deleted_at IS NOT NULL").Find(&entities).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return entities, nil
}

// FindAny fetches an entity by id, trashed or not.
func (s *Store[T]) FindAny(id uint) (*T, error) {
	var entity T
	err := s.db.Unscoped().First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("%s not found.", s.name))
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &entity, nil
}

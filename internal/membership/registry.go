// Package membership maintains the Project<->User pivot rows: per-pair role,
// contribution hours and last-activity timestamps, plus the soft-delete
// cascade that keeps pivot state in step with the parent project.
package membership

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/models"
)

type Registry struct {
	db *gorm.DB
}

// NewRegistry binds a registry to db. Hand it a transaction handle when the
// pivot mutation must be atomic with a parent entity mutation.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Desired is one row of a declarative Sync request. Nil Role or
// ContributionHours means "keep whatever the existing row has"; a nil Role
// on a brand-new pair is rejected.
type Desired struct {
	UserID            uint
	Role              *string
	ContributionHours *int
}

// Attach adds a user to a project. It fails with Conflict when an active
// membership already exists for the pair and with NotFound when the user
// does not exist. A previously detached (trashed) pair is revived in place
// so the unique (project_id, user_id) index holds.
func (r *Registry) Attach(projectID, userID uint, role string, contributionHours int, lastActivity *time.Time) (*models.ProjectMembership, error) {
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Internal(err)
	}

	var existing models.ProjectMembership
	err := r.db.Unscoped().
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&existing).Error

	switch {
	case err == nil && !existing.DeletedAt.Valid:
		return nil, apperr.Conflict("User is already a member of this project.")
	case err == nil:
		updates := map[string]interface{}{
			"role":               role,
			"contribution_hours": contributionHours,
			"last_activity":      lastActivity,
			"deleted_at":         nil,
		}
		if err := r.db.Unscoped().Model(&existing).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err)
		}
		var revived models.ProjectMembership
		if err := r.db.First(&revived, existing.ID).Error; err != nil {
			return nil, apperr.Internal(err)
		}
		return &revived, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(err)
	}

	row := models.ProjectMembership{
		ProjectID:         projectID,
		UserID:            userID,
		Role:              role,
		ContributionHours: contributionHours,
		LastActivity:      lastActivity,
	}

	if err := r.db.Create(&row).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &row, nil
}

// Sync reconciles the project's membership set against desired in one
// transaction: rows absent from desired are detached, present-and-changed
// rows are updated in place, untouched rows are left alone. Omitted role or
// contribution hours are preserved from the prior row. Calling Sync twice
// with the same desired set is a no-op the second time.
func (r *Registry) Sync(projectID uint, desired []Desired) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []models.ProjectMembership
		if err := tx.Where("project_id = ?", projectID).Find(&existing).Error; err != nil {
			return apperr.Internal(err)
		}

		current := make(map[uint]models.ProjectMembership, len(existing))
		for _, row := range existing {
			current[row.UserID] = row
		}

		keep := make([]uint, 0, len(desired))
		for _, want := range desired {
			keep = append(keep, want.UserID)

			row, ok := current[want.UserID]
			if !ok {
				if want.Role == nil {
					return apperr.InvalidState("A role is required when adding a new project member.")
				}
				hours := 0
				if want.ContributionHours != nil {
					hours = *want.ContributionHours
				}
				reg := NewRegistry(tx)
				if _, err := reg.Attach(projectID, want.UserID, *want.Role, hours, nil); err != nil {
					return err
				}
				continue
			}

			role := row.Role
			if want.Role != nil {
				role = *want.Role
			}
			hours := row.ContributionHours
			if want.ContributionHours != nil {
				hours = *want.ContributionHours
			}

			if role == row.Role && hours == row.ContributionHours {
				continue
			}

			updates := map[string]interface{}{
				"role":               role,
				"contribution_hours": hours,
			}
			if err := tx.Model(&models.ProjectMembership{}).
				Where("project_id = ? AND user_id = ?", projectID, want.UserID).
				Updates(updates).Error; err != nil {
				return apperr.Internal(err)
			}
		}

		detach := tx.Unscoped().Where("project_id = ?", projectID)
		if len(keep) > 0 {
			detach = detach.Where("user_id NOT IN ?", keep)
		}
		if err := detach.Delete(&models.ProjectMembership{}).Error; err != nil {
			return apperr.Internal(err)
		}

		return nil
	})
}

// RoleOf returns the user's role in the project, or the empty string when no
// active membership exists.
func (r *Registry) RoleOf(projectID, userID uint) (string, error) {
	var row models.ProjectMembership
	err := r.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Internal(err)
	}
	return row.Role, nil
}

// BumpLastActivity stamps last_activity = now on the given members. Called
// whenever a task under the project is mutated by a member.
func (r *Registry) BumpLastActivity(projectID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now()
	err := r.db.Model(&models.ProjectMembership{}).
		Where("project_id = ? AND user_id IN ?", projectID, userIDs).
		Update("last_activity", now).Error
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// CascadeDelete trashes every membership row of a project, stamped with the
// project's own deletion timestamp.
func (r *Registry) CascadeDelete(projectID uint, deletedAt time.Time) error {
	err := r.db.Model(&models.ProjectMembership{}).
		Where("project_id = ?", projectID).
		Update("deleted_at", deletedAt).Error
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// CascadeRestore revives every membership row of a project.
func (r *Registry) CascadeRestore(projectID uint) error {
	err := r.db.Unscoped().Model(&models.ProjectMembership{}).
		Where("project_id = ?", projectID).
		Update("deleted_at", nil).Error
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Detach permanently removes every membership row of a project. Used when a
// project is force-deleted.
func (r *Registry) Detach(projectID uint) error {
	err := r.db.Unscoped().
		Where("project_id = ?", projectID).
		Delete(&models.ProjectMembership{}).Error
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ListForProject returns the project's membership rows, trashed ones
// included when includeTrashed is set.
func (r *Registry) ListForProject(projectID uint, includeTrashed bool) ([]models.ProjectMembership, error) {
	q := r.db
	if includeTrashed {
		q = q.Unscoped()
	}

	var rows []models.ProjectMembership
	if err := q.Where("project_id = ?", projectID).Preload("User").Find(&rows).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return rows, nil
}

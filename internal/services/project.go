package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/membership"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/trash"
)

// ProjectService orchestrates project operations. Project mutations (create,
// update, delete, restore, force delete) are reserved for global admins; the
// membership cascade runs in the same transaction as the parent mutation.
type ProjectService struct {
	db          *gorm.DB
	memberships *membership.Registry
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{
		db:          db,
		memberships: membership.NewRegistry(db),
	}
}

// MemberInput describes one member on project create. Role is required.
type MemberInput struct {
	UserID            uint
	Role              string
	ContributionHours int
	LastActivity      *time.Time
}

type CreateProjectInput struct {
	Name        string
	Description string
	Members     []MemberInput
}

// UpdateProjectInput carries project field changes plus an optional desired
// membership set. A nil Members leaves the membership set untouched; a
// non-nil one is reconciled declaratively (see membership.Registry.Sync).
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Members     []membership.Desired
	SyncMembers bool
}

func (s *ProjectService) store() *trash.Store[models.Project] {
	return trash.NewStore[models.Project](s.db, "Project")
}

func requireAdmin(principal authz.Principal) error {
	if !principal.IsAdmin() {
		return apperr.Forbidden(authz.ReasonNoPermission)
	}
	return nil
}

// Create persists a project and attaches its initial members atomically.
func (s *ProjectService) Create(principal authz.Principal, input CreateProjectInput) (*models.Project, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	project := models.Project{
		Name:        input.Name,
		Description: input.Description,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return apperr.Internal(err)
		}

		reg := membership.NewRegistry(tx)
		for _, member := range input.Members {
			if _, err := reg.Attach(project.ID, member.UserID, member.Role, member.ContributionHours, member.LastActivity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &project, nil
}

// Update changes project fields and, when requested, reconciles the
// membership set in the same transaction.
func (s *ProjectService) Update(principal authz.Principal, projectID uint, input UpdateProjectInput) (*models.Project, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found.")
		}
		return nil, apperr.Internal(err)
	}

	updates := make(map[string]interface{})
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&project).Updates(updates).Error; err != nil {
				return apperr.Internal(err)
			}
		}
		if input.SyncMembers {
			if err := membership.NewRegistry(tx).Sync(project.ID, input.Members); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var updated models.Project
	if err := s.db.First(&updated, project.ID).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &updated, nil
}

// Delete trashes a project and cascades the same deletion timestamp onto
// every membership row, atomically.
func (s *ProjectService) Delete(principal authz.Principal, projectID uint) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Project not found.")
		}
		return apperr.Internal(err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := trash.NewStore[models.Project](tx, "Project").SoftDelete(project.ID); err != nil {
			return err
		}

		var trashed models.Project
		if err := tx.Unscoped().First(&trashed, project.ID).Error; err != nil {
			return apperr.Internal(err)
		}

		return membership.NewRegistry(tx).CascadeDelete(project.ID, trashed.DeletedAt.Time)
	})
}

// Restore revives a trashed project and clears the deletion timestamp on its
// membership rows, atomically.
func (s *ProjectService) Restore(principal authz.Principal, projectID uint) (*models.Project, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	var restored *models.Project
	err := s.db.Transaction(func(tx *gorm.DB) error {
		project, err := trash.NewStore[models.Project](tx, "Project").Restore(projectID)
		if err != nil {
			return err
		}
		restored = project

		return membership.NewRegistry(tx).CascadeRestore(projectID)
	})
	if err != nil {
		return nil, err
	}

	return restored, nil
}

// ForceDelete permanently removes a trashed project and detaches all of its
// membership rows.
func (s *ProjectService) ForceDelete(principal authz.Principal, projectID uint) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		store := trash.NewStore[models.Project](tx, "Project")

		project, err := store.FindAny(projectID)
		if err != nil {
			return err
		}
		if !project.DeletedAt.Valid {
			return apperr.InvalidState("Project must be trashed before it can be permanently deleted.")
		}

		if err := membership.NewRegistry(tx).Detach(project.ID); err != nil {
			return err
		}

		return store.ForceDelete(project.ID)
	})
}

// List returns every live project.
func (s *ProjectService) List() ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.Find(&projects).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return projects, nil
}

// Get returns a live project together with its active membership rows.
func (s *ProjectService) Get(projectID uint) (*models.Project, []models.ProjectMembership, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("Project not found.")
		}
		return nil, nil, apperr.Internal(err)
	}

	members, err := s.memberships.ListForProject(project.ID, false)
	if err != nil {
		return nil, nil, err
	}

	return &project, members, nil
}

// ListTrashed returns every trashed project.
func (s *ProjectService) ListTrashed() ([]models.Project, error) {
	return s.store().ListTrashed()
}

package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/membership"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/trash"
)

// TaskService orchestrates task operations: it resolves the project context,
// asks the authorization engine for a verdict and applies the mutation
// through the lifecycle store and the membership registry. The acting
// principal is always an explicit parameter — there is no ambient auth state.
type TaskService struct {
	db          *gorm.DB
	memberships *membership.Registry
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{
		db:          db,
		memberships: membership.NewRegistry(db),
	}
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	ProjectID   uint
	Notes       string
}

func (s *TaskService) store() *trash.Store[models.Task] {
	return trash.NewStore[models.Task](s.db, "Task")
}

func (s *TaskService) memberRole(principal authz.Principal, projectID uint) (authz.Role, error) {
	role, err := s.memberships.RoleOf(projectID, principal.UserID)
	if err != nil {
		return authz.RoleNone, err
	}
	return authz.ParseRole(role), nil
}

// Create persists a new task after checking that the target project is live
// and that the principal may create tasks in it.
func (s *TaskService) Create(principal authz.Principal, input CreateTaskInput) (*models.Task, error) {
	var project models.Project
	if err := s.db.First(&project, input.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found.")
		}
		return nil, apperr.Internal(err)
	}

	role, err := s.memberRole(principal, project.ID)
	if err != nil {
		return nil, err
	}
	if decision := authz.Decide(principal, role, authz.ActionCreate, nil); !decision.Allowed {
		return nil, apperr.Forbidden(decision.Reason)
	}

	task := models.Task{
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		ProjectID:   project.ID,
		Notes:       input.Notes,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusNew
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}

	if err := s.db.Create(&task).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &task, nil
}

// Update applies the given field changes to a task. The changed-field set is
// what the authorization engine judges: developers may only touch status,
// testers only notes, managers and admins anything. On success the acting
// member's last-activity timestamp is bumped in the same transaction.
// Change keys are task column names ("title", "description", "status",
// "priority", "due_date", "notes").
func (s *TaskService) Update(principal authz.Principal, taskID uint, changes map[string]interface{}) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Task not found.")
		}
		return nil, apperr.Internal(err)
	}

	var project models.Project
	if err := s.db.First(&project, task.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Associated project not found.")
		}
		return nil, apperr.Internal(err)
	}

	fields := make([]string, 0, len(changes))
	for name := range changes {
		fields = append(fields, name)
	}

	role, err := s.memberRole(principal, project.ID)
	if err != nil {
		return nil, err
	}
	if decision := authz.Decide(principal, role, authz.ActionUpdate, fields); !decision.Allowed {
		return nil, apperr.Forbidden(decision.Reason)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(changes) > 0 {
			if err := tx.Model(&task).Updates(changes).Error; err != nil {
				return apperr.Internal(err)
			}
		}
		return membership.NewRegistry(tx).BumpLastActivity(project.ID, []uint{principal.UserID})
	})
	if err != nil {
		return nil, err
	}

	var updated models.Task
	if err := s.db.First(&updated, taskID).Error; err != nil {
		return nil, apperr.Internal(err)
	}

	return &updated, nil
}

// Delete trashes a task. Managers of the owning project and global admins
// only.
func (s *TaskService) Delete(principal authz.Principal, taskID uint) error {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Task not found.")
		}
		return apperr.Internal(err)
	}

	role, err := s.memberRole(principal, task.ProjectID)
	if err != nil {
		return err
	}
	if decision := authz.Decide(principal, role, authz.ActionDelete, nil); !decision.Allowed {
		return apperr.Forbidden(decision.Reason)
	}

	return s.store().SoftDelete(task.ID)
}

// Restore revives a trashed task. The owning project must still exist so the
// membership check has something to resolve against.
func (s *TaskService) Restore(principal authz.Principal, taskID uint) (*models.Task, error) {
	var task models.Task
	err := s.db.Unscoped().Where("deleted_at IS NOT NULL").First(&task, taskID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Task not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var project models.Project
	if err := s.db.First(&project, task.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Associated project not found.")
		}
		return nil, apperr.Internal(err)
	}

	role, err := s.memberRole(principal, project.ID)
	if err != nil {
		return nil, err
	}
	if decision := authz.Decide(principal, role, authz.ActionRestore, nil); !decision.Allowed {
		return nil, apperr.Forbidden(decision.Reason)
	}

	return s.store().Restore(task.ID)
}

// ForceDelete permanently removes a trashed task. Global admins only.
func (s *TaskService) ForceDelete(principal authz.Principal, taskID uint) error {
	task, err := s.store().FindAny(taskID)
	if err != nil {
		return err
	}

	role, err := s.memberRole(principal, task.ProjectID)
	if err != nil {
		return err
	}
	if decision := authz.Decide(principal, role, authz.ActionForceDelete, nil); !decision.Allowed {
		return apperr.Forbidden(decision.Reason)
	}

	return s.store().ForceDelete(task.ID)
}

// Get returns a live task by id.
func (s *TaskService) Get(taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Task not found.")
		}
		return nil, apperr.Internal(err)
	}
	return &task, nil
}

// ListByProject returns every task of one live project. Active members of
// the project and global admins only.
func (s *TaskService) ListByProject(principal authz.Principal, projectID uint) ([]models.Task, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found.")
		}
		return nil, apperr.Internal(err)
	}

	role, err := s.memberRole(principal, project.ID)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && role == authz.RoleNone {
		return nil, apperr.Forbidden(authz.ReasonNotMember)
	}

	var tasks []models.Task
	if err := s.db.Where("project_id = ?", project.ID).Find(&tasks).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return tasks, nil
}

// ListForUser returns the tasks of every live project where the user holds
// an active membership. Admins see all tasks of live projects.
func (s *TaskService) ListForUser(principal authz.Principal) ([]models.Task, error) {
	q := s.db.
		Joins("JOIN projects ON projects.id = tasks.project_id AND projects.deleted_at IS NULL")

	if !principal.IsAdmin() {
		q = q.Joins(
			"JOIN project_memberships ON project_memberships.project_id = tasks.project_id AND project_memberships.user_id = ? AND project_memberships.deleted_at IS NULL",
			principal.UserID,
		)
	}

	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return tasks, nil
}

// Filtered narrows the user's tasks by exact status and/or priority match.
// Empty filter values mean "any".
func (s *TaskService) Filtered(principal authz.Principal, status, priority string) ([]models.Task, error) {
	q := s.db.
		Joins("JOIN projects ON projects.id = tasks.project_id AND projects.deleted_at IS NULL").
		Joins(
			"JOIN project_memberships ON project_memberships.project_id = tasks.project_id AND project_memberships.user_id = ? AND project_memberships.deleted_at IS NULL",
			principal.UserID,
		)

	if status != "" {
		q = q.Where("tasks.status = ?", status)
	}
	if priority != "" {
		q = q.Where("tasks.priority = ?", priority)
	}

	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return tasks, nil
}

// ListTrashed returns every trashed task.
func (s *TaskService) ListTrashed() ([]models.Task, error) {
	return s.store().ListTrashed()
}

// priorityRank orders tasks high > medium > low in SQL; ties fall back to
// the lowest id.
const priorityRank = "CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END, id ASC"

// HighestPriorityTask returns the top-ranked task of a project, optionally
// narrowed to an exact status and/or a case-insensitive substring match on
// the title. NotFound when nothing matches.
func (s *TaskService) HighestPriorityTask(projectID uint, titleFilter, status string) (*models.Task, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found.")
		}
		return nil, apperr.Internal(err)
	}

	q := s.db.Where("project_id = ?", project.ID).Order(priorityRank)
	if titleFilter != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(titleFilter)+"%")
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var task models.Task
	if err := q.First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("No tasks found for this project.")
		}
		return nil, apperr.Internal(err)
	}

	return &task, nil
}

// LatestTask returns the most recently created task of a project, or nil
// when the project has none.
func (s *TaskService) LatestTask(projectID uint) (*models.Task, error) {
	return s.taskByAge(projectID, "created_at DESC, id DESC")
}

// OldestTask returns the earliest created task of a project, or nil when the
// project has none.
func (s *TaskService) OldestTask(projectID uint) (*models.Task, error) {
	return s.taskByAge(projectID, "created_at ASC, id ASC")
}

func (s *TaskService) taskByAge(projectID uint, order string) (*models.Task, error) {
	var project models.Project
	if err := s.db.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Project not found.")
		}
		return nil, apperr.Internal(err)
	}

	var task models.Task
	err := s.db.Where("project_id = ?", project.ID).Order(order).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &task, nil
}

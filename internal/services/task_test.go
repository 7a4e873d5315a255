package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/testutil"
)

func principalFor(user models.User) authz.Principal {
	role := authz.RoleNone
	if user.Role == models.GlobalRoleAdmin {
		role = authz.RoleAdmin
	}
	return authz.Principal{UserID: user.ID, GlobalRole: role}
}

func seedProjectTeam(t *testing.T, db *gorm.DB) (models.Project, map[string]models.User) {
	t.Helper()

	project := testutil.CreateProject(t, db, "Apollo")
	team := map[string]models.User{
		"admin":     testutil.CreateUser(t, db, "Ada Admin", models.GlobalRoleAdmin),
		"manager":   testutil.CreateUser(t, db, "Mona Manager", models.GlobalRoleUser),
		"developer": testutil.CreateUser(t, db, "Dev Devlin", models.GlobalRoleUser),
		"tester":    testutil.CreateUser(t, db, "Tess Tester", models.GlobalRoleUser),
		"outsider":  testutil.CreateUser(t, db, "Otto Outsider", models.GlobalRoleUser),
	}
	testutil.AddMember(t, db, project.ID, team["manager"].ID, models.ProjectRoleManager)
	testutil.AddMember(t, db, project.ID, team["developer"].ID, models.ProjectRoleDeveloper)
	testutil.AddMember(t, db, project.ID, team["tester"].ID, models.ProjectRoleTester)
	return project, team
}

func TestTaskCreatePermissions(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)

	input := CreateTaskInput{Title: "Ship it", ProjectID: project.ID}

	task, err := svc.Create(principalFor(team["manager"]), input)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusNew, task.Status)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)

	// Admins create without holding a membership.
	_, err = svc.Create(principalFor(team["admin"]), input)
	require.NoError(t, err)

	_, err = svc.Create(principalFor(team["developer"]), input)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, authz.ReasonManagersCreate)

	_, err = svc.Create(principalFor(team["outsider"]), input)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, authz.ReasonNotMember)
}

func TestTaskCreateOnTrashedProjectIsNotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)

	require.NoError(t, db.Delete(&models.Project{}, project.ID).Error)

	_, err := svc.Create(principalFor(team["admin"]), CreateTaskInput{Title: "Too late", ProjectID: project.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTaskUpdateDeveloperStatusOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	task := testutil.CreateTask(t, db, project.ID, "Fix login", models.TaskStatusNew, models.TaskPriorityHigh)

	dev := principalFor(team["developer"])

	_, err := svc.Update(dev, task.ID, map[string]interface{}{
		"status": models.TaskStatusCompleted,
		"notes":  "done",
	})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, authz.ReasonDeveloperStatus)

	updated, err := svc.Update(dev, task.ID, map[string]interface{}{
		"status": models.TaskStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, updated.Status)

	// The acting member's activity timestamp is bumped.
	var row models.ProjectMembership
	require.NoError(t, db.Where("project_id = ? AND user_id = ?", project.ID, team["developer"].ID).First(&row).Error)
	assert.NotNil(t, row.LastActivity)
}

func TestTaskUpdateTesterNotesOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	task := testutil.CreateTask(t, db, project.ID, "Fix login", models.TaskStatusNew, models.TaskPriorityHigh)

	tester := principalFor(team["tester"])

	_, err := svc.Update(tester, task.ID, map[string]interface{}{"status": models.TaskStatusCompleted})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, authz.ReasonTesterNotes)

	updated, err := svc.Update(tester, task.ID, map[string]interface{}{"notes": "flaky on retry"})
	require.NoError(t, err)
	assert.Equal(t, "flaky on retry", updated.Notes)
}

func TestTaskUpdateManagerAnyFields(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	task := testutil.CreateTask(t, db, project.ID, "Fix login", models.TaskStatusNew, models.TaskPriorityLow)

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(principalFor(team["manager"]), task.ID, map[string]interface{}{
		"title":    "Fix login flow",
		"priority": models.TaskPriorityHigh,
		"due_date": due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Fix login flow", updated.Title)
	assert.Equal(t, models.TaskPriorityHigh, updated.Priority)
	require.NotNil(t, updated.DueDate)
	assert.True(t, updated.DueDate.Equal(due))
}

func TestTaskDeleteRestoreLifecycle(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	task := testutil.CreateTask(t, db, project.ID, "Doomed", models.TaskStatusNew, models.TaskPriorityMedium)

	manager := principalFor(team["manager"])

	err := svc.Delete(principalFor(team["developer"]), task.ID)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, svc.Delete(manager, task.ID))

	_, err = svc.Get(task.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	restored, err := svc.Restore(manager, task.ID)
	require.NoError(t, err)
	assert.False(t, restored.DeletedAt.Valid)

	_, err = svc.Get(task.ID)
	require.NoError(t, err)
}

func TestTaskForceDeleteAdminOnlyAndTrashedOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	task := testutil.CreateTask(t, db, project.ID, "Doomed", models.TaskStatusNew, models.TaskPriorityMedium)

	admin := principalFor(team["admin"])

	err := svc.ForceDelete(principalFor(team["manager"]), task.ID)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, authz.ReasonAdminForce)

	// Even an admin must trash the task first.
	err = svc.ForceDelete(admin, task.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	require.NoError(t, svc.Delete(admin, task.ID))
	require.NoError(t, svc.ForceDelete(admin, task.ID))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTaskListForUserScopedByMembership(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	other := testutil.CreateProject(t, db, "Borealis")

	mine := testutil.CreateTask(t, db, project.ID, "Mine", models.TaskStatusNew, models.TaskPriorityMedium)
	testutil.CreateTask(t, db, other.ID, "Not mine", models.TaskStatusNew, models.TaskPriorityMedium)

	tasks, err := svc.ListForUser(principalFor(team["developer"]))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, mine.ID, tasks[0].ID)

	// Admins see tasks of every live project.
	tasks, err = svc.ListForUser(principalFor(team["admin"]))
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = svc.ListForUser(principalFor(team["outsider"]))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskListByProject(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)
	other := testutil.CreateProject(t, db, "Borealis")

	here := testutil.CreateTask(t, db, project.ID, "Here", models.TaskStatusNew, models.TaskPriorityMedium)
	testutil.CreateTask(t, db, other.ID, "Elsewhere", models.TaskStatusNew, models.TaskPriorityMedium)

	// Any active member sees the project's tasks, tester included.
	tasks, err := svc.ListByProject(principalFor(team["tester"]), project.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, here.ID, tasks[0].ID)

	// Admins need no membership.
	tasks, err = svc.ListByProject(principalFor(team["admin"]), project.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = svc.ListByProject(principalFor(team["outsider"]), project.ID)
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, authz.ReasonNotMember)

	_, err = svc.ListByProject(principalFor(team["admin"]), 9999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// A trashed project is gone for listing purposes too.
	require.NoError(t, db.Delete(&models.Project{}, project.ID).Error)
	_, err = svc.ListByProject(principalFor(team["admin"]), project.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTaskFilteredByStatusAndPriority(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project, team := seedProjectTeam(t, db)

	testutil.CreateTask(t, db, project.ID, "A", models.TaskStatusNew, models.TaskPriorityHigh)
	target := testutil.CreateTask(t, db, project.ID, "B", models.TaskStatusInProgress, models.TaskPriorityHigh)
	testutil.CreateTask(t, db, project.ID, "C", models.TaskStatusInProgress, models.TaskPriorityLow)

	dev := principalFor(team["developer"])

	tasks, err := svc.Filtered(dev, models.TaskStatusInProgress, models.TaskPriorityHigh)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, target.ID, tasks[0].ID)

	tasks, err = svc.Filtered(dev, models.TaskStatusInProgress, "")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	// No membership, no results.
	tasks, err = svc.Filtered(principalFor(team["outsider"]), "", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestHighestPriorityTask(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project := testutil.CreateProject(t, db, "Apollo")

	testutil.CreateTask(t, db, project.ID, "Low one", models.TaskStatusNew, models.TaskPriorityLow)
	first := testutil.CreateTask(t, db, project.ID, "High one", models.TaskStatusNew, models.TaskPriorityHigh)
	testutil.CreateTask(t, db, project.ID, "High two", models.TaskStatusNew, models.TaskPriorityHigh)
	testutil.CreateTask(t, db, project.ID, "Medium one", models.TaskStatusNew, models.TaskPriorityMedium)
	started := testutil.CreateTask(t, db, project.ID, "Low started", models.TaskStatusInProgress, models.TaskPriorityLow)

	// Highest rank wins; ties go to the lowest id.
	task, err := svc.HighestPriorityTask(project.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, task.ID)

	// Title filter is a case-insensitive substring match.
	task, err = svc.HighestPriorityTask(project.ID, "MEDIUM", "")
	require.NoError(t, err)
	assert.Equal(t, "Medium one", task.Title)

	// Status narrows the candidate set before ranking.
	task, err = svc.HighestPriorityTask(project.ID, "", models.TaskStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, started.ID, task.ID)

	_, err = svc.HighestPriorityTask(project.ID, "nonexistent", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.HighestPriorityTask(project.ID, "", models.TaskStatusCompleted)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	empty := testutil.CreateProject(t, db, "Empty")
	_, err = svc.HighestPriorityTask(empty.ID, "", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.HighestPriorityTask(9999, "", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLatestAndOldestTask(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewTaskService(db)
	project := testutil.CreateProject(t, db, "Apollo")

	oldest := testutil.CreateTask(t, db, project.ID, "First", models.TaskStatusNew, models.TaskPriorityMedium)
	middle := testutil.CreateTask(t, db, project.ID, "Second", models.TaskStatusNew, models.TaskPriorityMedium)
	latest := testutil.CreateTask(t, db, project.ID, "Third", models.TaskStatusNew, models.TaskPriorityMedium)

	now := time.Now()
	testutil.SetCreatedAt(t, db, oldest.ID, now.Add(-48*time.Hour))
	testutil.SetCreatedAt(t, db, middle.ID, now.Add(-24*time.Hour))
	testutil.SetCreatedAt(t, db, latest.ID, now)

	task, err := svc.LatestTask(project.ID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, latest.ID, task.ID)

	task, err = svc.OldestTask(project.ID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, oldest.ID, task.ID)

	// A project with no tasks yields no task and no error.
	empty := testutil.CreateProject(t, db, "Empty")
	task, err = svc.LatestTask(empty.ID)
	require.NoError(t, err)
	assert.Nil(t, task)

	_, err = svc.OldestTask(9999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

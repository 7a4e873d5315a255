package trash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/testutil"
)

func TestSoftDeleteHidesEntityAndIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	project := testutil.CreateProject(t, db, "Apollo")
	task := testutil.CreateTask(t, db, project.ID, "Design review", models.TaskStatusNew, models.TaskPriorityHigh)

	store := NewStore[models.Task](db, "Task")

	require.NoError(t, store.SoftDelete(task.ID))

	err := db.First(&models.Task{}, task.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var unscoped models.Task
	require.NoError(t, db.Unscoped().First(&unscoped, task.ID).Error)
	assert.True(t, unscoped.DeletedAt.Valid)

	// Trashing again is a no-op success.
	require.NoError(t, store.SoftDelete(task.ID))
}

func TestRestoreRoundTrip(t *testing.T) {
	db := testutil.OpenDB(t)
	project := testutil.CreateProject(t, db, "Apollo")
	task := testutil.CreateTask(t, db, project.ID, "Design review", models.TaskStatusInProgress, models.TaskPriorityLow)
	task.Notes = "check margins"
	require.NoError(t, db.Save(&task).Error)

	store := NewStore[models.Task](db, "Task")

	require.NoError(t, store.SoftDelete(task.ID))

	restored, err := store.Restore(task.ID)
	require.NoError(t, err)

	assert.Equal(t, task.ID, restored.ID)
	assert.Equal(t, task.Title, restored.Title)
	assert.Equal(t, task.Status, restored.Status)
	assert.Equal(t, task.Priority, restored.Priority)
	assert.Equal(t, task.Notes, restored.Notes)
	assert.False(t, restored.DeletedAt.Valid)

	var found models.Task
	require.NoError(t, db.First(&found, task.ID).Error)
}

func TestRestoreUnknownOrLiveEntityIsNotFound(t *testing.T) {
	db := testutil.OpenDB(t)
	project := testutil.CreateProject(t, db, "Apollo")
	task := testutil.CreateTask(t, db, project.ID, "Live task", models.TaskStatusNew, models.TaskPriorityMedium)

	store := NewStore[models.Task](db, "Task")

	_, err := store.Restore(9999)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// A live entity is not restorable either.
	_, err = store.Restore(task.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestForceDeleteRequiresTrashedState(t *testing.T) {
	db := testutil.OpenDB(t)
	project := testutil.CreateProject(t, db, "Apollo")
	task := testutil.CreateTask(t, db, project.ID, "Doomed", models.TaskStatusNew, models.TaskPriorityMedium)

	store := NewStore[models.Task](db, "Task")

	err := store.ForceDelete(task.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	require.NoError(t, store.SoftDelete(task.ID))
	require.NoError(t, store.ForceDelete(task.ID))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error)
	assert.Zero(t, count)

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(store.ForceDelete(task.ID)))
}

func TestListTrashedReturnsOnlyTrashed(t *testing.T) {
	db := testutil.OpenDB(t)
	project := testutil.CreateProject(t, db, "Apollo")
	live := testutil.CreateTask(t, db, project.ID, "Live", models.TaskStatusNew, models.TaskPriorityMedium)
	gone := testutil.CreateTask(t, db, project.ID, "Gone", models.TaskStatusNew, models.TaskPriorityMedium)

	store := NewStore[models.Task](db, "Task")
	require.NoError(t, store.SoftDelete(gone.ID))

	trashed, err := store.ListTrashed()
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, gone.ID, trashed[0].ID)
	assert.NotEqual(t, live.ID, trashed[0].ID)
}

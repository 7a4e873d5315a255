// Package testutil opens throwaway in-memory databases and seeds fixtures
// for service and repository tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/taskforge-dev/taskforge/internal/models"
)

// OpenDB returns an isolated in-memory database with the full schema
// migrated. Connections are capped at one so every query sees the same
// SQLite memory store.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Task{},
		&models.ProjectMembership{},
	))

	return db
}

func CreateUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()

	user := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", strings.ToLower(strings.ReplaceAll(name, " ", "."))),
		PasswordHash: "not-a-real-hash",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func CreateProject(t *testing.T, db *gorm.DB, name string) models.Project {
	t.Helper()

	project := models.Project{Name: name, Description: name + " description"}
	require.NoError(t, db.Create(&project).Error)
	return project
}

func CreateTask(t *testing.T, db *gorm.DB, projectID uint, title, status, priority string) models.Task {
	t.Helper()

	task := models.Task{
		Title:     title,
		Status:    status,
		Priority:  priority,
		ProjectID: projectID,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func AddMember(t *testing.T, db *gorm.DB, projectID, userID uint, role string) models.ProjectMembership {
	t.Helper()

	row := models.ProjectMembership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

// SetCreatedAt backdates a task's creation timestamp, for latest/oldest
// ordering tests.
func SetCreatedAt(t *testing.T, db *gorm.DB, taskID uint, at time.Time) {
	t.Helper()

	require.NoError(t, db.Model(&models.Task{}).Where("id = ?", taskID).Update("created_at", at).Error)
}

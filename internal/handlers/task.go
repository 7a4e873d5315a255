package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/services"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
)

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status" binding:"omitempty,oneof=new in_progress completed"`
	Priority    string     `json:"priority" binding:"omitempty,oneof=high medium low"`
	DueDate     *time.Time `json:"due_date"`
	ProjectID   uint       `json:"project_id" binding:"required"`
	Notes       string     `json:"notes"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status" binding:"omitempty,oneof=new in_progress completed"`
	Priority    *string    `json:"priority" binding:"omitempty,oneof=high medium low"`
	DueDate     *time.Time `json:"due_date"`
	Notes       *string    `json:"notes"`
}

// changes flattens the non-nil request fields into the column-keyed change
// set the task service feeds to the authorization engine.
func (r UpdateTaskRequest) changes() map[string]interface{} {
	changes := make(map[string]interface{})
	if r.Title != nil {
		changes["title"] = *r.Title
	}
	if r.Description != nil {
		changes["description"] = *r.Description
	}
	if r.Status != nil {
		changes["status"] = *r.Status
	}
	if r.Priority != nil {
		changes["priority"] = *r.Priority
	}
	if r.DueDate != nil {
		changes["due_date"] = *r.DueDate
	}
	if r.Notes != nil {
		changes["notes"] = *r.Notes
	}
	return changes
}

func ListTasks(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	tasks, err := services.NewTaskService(db.DB).ListForUser(principal)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": types.NewTaskResponses(tasks)})
}

func FilterTasks(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	tasks, err := services.NewTaskService(db.DB).Filtered(principal, ctx.Query("status"), ctx.Query("priority"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": types.NewTaskResponses(tasks)})
}

func GetTask(ctx *gin.Context) {
	taskID, ok := parseID(ctx, "task_id")
	if !ok {
		return
	}

	task, err := services.NewTaskService(db.DB).Get(taskID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": types.NewTaskResponse(*task)})
}

func CreateTask(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateTaskRequest
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	task, err := services.NewTaskService(db.DB).Create(principal, services.CreateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		DueDate:     body.DueDate,
		ProjectID:   body.ProjectID,
		Notes:       body.Notes,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"task": types.NewTaskResponse(*task)})
}

func UpdateTask(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, ok := parseID(ctx, "task_id")
	if !ok {
		return
	}

	var body UpdateTaskRequest
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	task, err := services.NewTaskService(db.DB).Update(principal, taskID, body.changes())
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": types.NewTaskResponse(*task)})
}

func DeleteTask(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, ok := parseID(ctx, "task_id")
	if !ok {
		return
	}

	if err := services.NewTaskService(db.DB).Delete(principal, taskID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully."})
}

func RestoreTask(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, ok := parseID(ctx, "task_id")
	if !ok {
		return
	}

	task, err := services.NewTaskService(db.DB).Restore(principal, taskID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Task restored successfully.",
		"task":    types.NewTaskResponse(*task),
	})
}

func ForceDeleteTask(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	taskID, ok := parseID(ctx, "task_id")
	if !ok {
		return
	}

	if err := services.NewTaskService(db.DB).ForceDelete(principal, taskID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task permanently deleted."})
}

func ListDeletedTasks(ctx *gin.Context) {
	tasks, err := services.NewTaskService(db.DB).ListTrashed()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted_tasks": types.NewTaskResponses(tasks)})
}

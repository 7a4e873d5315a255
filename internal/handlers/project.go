package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/membership"
	"github.com/taskforge-dev/taskforge/internal/services"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
)

type ProjectMemberRequest struct {
	UserID            uint       `json:"user_id" binding:"required"`
	Role              string     `json:"role" binding:"required,oneof=manager developer tester"`
	ContributionHours int        `json:"contribution_hours" binding:"omitempty,min=0"`
	LastActivity      *time.Time `json:"last_activity"`
}

type CreateProjectRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Users       []ProjectMemberRequest `json:"users" binding:"omitempty,dive"`
}

type SyncMemberRequest struct {
	UserID            uint    `json:"user_id" binding:"required"`
	Role              *string `json:"role" binding:"omitempty,oneof=manager developer tester"`
	ContributionHours *int    `json:"contribution_hours" binding:"omitempty,min=0"`
}

type UpdateProjectRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Users       *[]SyncMemberRequest `json:"users" binding:"omitempty,dive"`
}

func ListProjects(ctx *gin.Context) {
	projects, err := services.NewProjectService(db.DB).List()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"projects": types.NewProjectResponses(projects)})
}

func CreateProject(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateProjectRequest
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	input := services.CreateProjectInput{
		Name:        body.Name,
		Description: body.Description,
	}
	for _, member := range body.Users {
		input.Members = append(input.Members, services.MemberInput{
			UserID:            member.UserID,
			Role:              member.Role,
			ContributionHours: member.ContributionHours,
			LastActivity:      member.LastActivity,
		})
	}

	project, err := services.NewProjectService(db.DB).Create(principal, input)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Project created successfully",
		"project": types.NewProjectResponse(*project, nil),
	})
}

func GetProject(ctx *gin.Context) {
	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	project, members, err := services.NewProjectService(db.DB).Get(projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"project": types.NewProjectResponse(*project, members)})
}

func UpdateProject(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	var body UpdateProjectRequest
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	input := services.UpdateProjectInput{
		Name:        body.Name,
		Description: body.Description,
	}
	if body.Users != nil {
		input.SyncMembers = true
		for _, member := range *body.Users {
			input.Members = append(input.Members, membership.Desired{
				UserID:            member.UserID,
				Role:              member.Role,
				ContributionHours: member.ContributionHours,
			})
		}
	}

	svc := services.NewProjectService(db.DB)

	if _, err := svc.Update(principal, projectID, input); err != nil {
		respondError(ctx, err)
		return
	}

	project, members, err := svc.Get(projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"project": types.NewProjectResponse(*project, members)})
}

func DeleteProject(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	if err := services.NewProjectService(db.DB).Delete(principal, projectID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

func RestoreProject(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	project, err := services.NewProjectService(db.DB).Restore(principal, projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Project restored successfully",
		"project": types.NewProjectResponse(*project, nil),
	})
}

func ForceDeleteProject(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	if err := services.NewProjectService(db.DB).ForceDelete(principal, projectID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Project permanently deleted successfully",
	})
}

func ListDeletedProjects(ctx *gin.Context) {
	projects, err := services.NewProjectService(db.DB).ListTrashed()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"deleted_projects": types.NewProjectResponses(projects),
	})
}

func ListProjectTasks(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	tasks, err := services.NewTaskService(db.DB).ListByProject(principal, projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": types.NewTaskResponses(tasks)})
}

func GetHighestPriorityTask(ctx *gin.Context) {
	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	task, err := services.NewTaskService(db.DB).HighestPriorityTask(projectID, ctx.Query("title"), ctx.Query("status"))
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": types.NewTaskResponse(*task)})
}

func GetLatestTask(ctx *gin.Context) {
	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	task, err := services.NewTaskService(db.DB).LatestTask(projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if task == nil {
		ctx.JSON(http.StatusOK, gin.H{"latest_task": nil})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"latest_task": types.NewTaskResponse(*task)})
}

func GetOldestTask(ctx *gin.Context) {
	projectID, ok := parseID(ctx, "project_id")
	if !ok {
		return
	}

	task, err := services.NewTaskService(db.DB).OldestTask(projectID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if task == nil {
		ctx.JSON(http.StatusOK, gin.H{"oldest_task": nil})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"oldest_task": types.NewTaskResponse(*task)})
}

package types

import (
	"time"

	"github.com/taskforge-dev/taskforge/internal/models"
)

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

func NewUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

type TaskResponse struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ProjectID   uint       `json:"project_id"`
	Notes       string     `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func NewTaskResponse(task models.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		ProjectID:   task.ProjectID,
		Notes:       task.Notes,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.DeletedAt.Valid {
		resp.DeletedAt = &task.DeletedAt.Time
	}
	return resp
}

func NewTaskResponses(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, NewTaskResponse(task))
	}
	return out
}

type MemberResponse struct {
	UserID            uint       `json:"user_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	ContributionHours int        `json:"contribution_hours"`
	LastActivity      *time.Time `json:"last_activity"`
}

func NewMemberResponse(row models.ProjectMembership) MemberResponse {
	return MemberResponse{
		UserID:            row.UserID,
		Name:              row.User.Name,
		Email:             row.User.Email,
		Role:              row.Role,
		ContributionHours: row.ContributionHours,
		LastActivity:      row.LastActivity,
	}
}

type ProjectResponse struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
	Members     []MemberResponse `json:"members,omitempty"`
}

func NewProjectResponse(project models.Project, members []models.ProjectMembership) ProjectResponse {
	resp := ProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
	if project.DeletedAt.Valid {
		resp.DeletedAt = &project.DeletedAt.Time
	}
	for _, row := range members {
		resp.Members = append(resp.Members, NewMemberResponse(row))
	}
	return resp
}

func NewProjectResponses(projects []models.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, project := range projects {
		out = append(out, NewProjectResponse(project, nil))
	}
	return out
}

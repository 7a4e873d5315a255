package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/services"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
)

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin user"`
}

func ListUsers(ctx *gin.Context) {
	users, err := services.NewUserService(db.DB).List()
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": types.NewUserResponses(users)})
}

func CreateUser(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var body CreateUserRequest
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	user, err := services.NewUserService(db.DB).Create(principal, services.CreateUserInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    types.NewUserResponse(*user),
	})
}

func GetUser(ctx *gin.Context) {
	userID, ok := parseID(ctx, "user_id")
	if !ok {
		return
	}

	user, err := services.NewUserService(db.DB).Get(userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": types.NewUserResponse(*user)})
}

func UpdateUser(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, ok := parseID(ctx, "user_id")
	if !ok {
		return
	}

	var body UpdateUserRequest
	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	user, err := services.NewUserService(db.DB).Update(principal, userID, services.UpdateUserInput{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Role:     body.Role,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    types.NewUserResponse(*user),
	})
}

func DeleteUser(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, ok := parseID(ctx, "user_id")
	if !ok {
		return
	}

	if err := services.NewUserService(db.DB).Delete(principal, userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func RestoreUser(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, ok := parseID(ctx, "user_id")
	if !ok {
		return
	}

	user, err := services.NewUserService(db.DB).Restore(principal, userID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User restored successfully",
		"user":    types.NewUserResponse(*user),
	})
}

func ForceDeleteUser(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userID, ok := parseID(ctx, "user_id")
	if !ok {
		return
	}

	if err := services.NewUserService(db.DB).ForceDelete(principal, userID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User permanently deleted"})
}

func ListDeletedUsers(ctx *gin.Context) {
	principal, err := utils.CurrentPrincipal(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	users, err := services.NewUserService(db.DB).ListTrashed(principal)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted_users": types.NewUserResponses(users)})
}

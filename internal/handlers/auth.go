package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/auth"
	"github.com/taskforge-dev/taskforge/internal/logger"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/types"
	"github.com/taskforge-dev/taskforge/internal/utils"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func respondWithToken(ctx *gin.Context, status int, user models.User) {
	token, err := auth.GenerateJWT(user.ID, user.Email, user.Role)

	if err != nil {
		logger.Log.Error("Failed to generate JWT", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(status, gin.H{
		"user":         types.NewUserResponse(user),
		"access_token": token,
		"expires_in":   int(auth.TokenTTL.Seconds()),
		"token_type":   "bearer",
	})
}

func Login(ctx *gin.Context) {
	var body LoginRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid request"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))

	var user models.User

	err := db.DB.Where("email = ?", email).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		logger.Log.Error("Database error when fetching user", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	respondWithToken(ctx, http.StatusOK, user)
}

// revokeRequestToken puts the bearer token of the current request on the
// denylist for the remainder of its lifetime. A no-op when no denylist is
// configured.
func revokeRequestToken(ctx *gin.Context) {
	if auth.Tokens == nil {
		return
	}

	header := ctx.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return
	}

	token, err := auth.VerifyJWT(parts[1])
	if err != nil {
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}

	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)
	if jti == "" {
		return
	}

	ttl := time.Until(time.Unix(int64(exp), 0))
	if err := auth.Tokens.Revoke(ctx.Request.Context(), jti, ttl); err != nil {
		logger.Log.Error("Failed to revoke token", zap.Error(err))
	}
}

func Logout(ctx *gin.Context) {
	revokeRequestToken(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "User has been logged out",
	})
}

// Refresh revokes the presented token and issues a fresh one for the same
// user.
func Refresh(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User

	if err := db.DB.First(&user, currentUser.ID).Error; err != nil {
		logger.Log.Error("Failed to fetch user", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	revokeRequestToken(ctx)
	respondWithToken(ctx, http.StatusOK, user)
}

func Current(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user": types.UserResponse{
			ID:    currentUser.ID,
			Name:  currentUser.Name,
			Email: currentUser.Email,
			Role:  currentUser.Role,
		},
	})
}

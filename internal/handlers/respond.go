package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/logger"
)

// respondError maps a service error onto its HTTP status. Internal failures
// are logged and answered with a generic message; business errors carry
// their specific reason to the client.
func respondError(ctx *gin.Context, err error) {
	status := apperr.StatusCode(err)

	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
		ctx.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(status, gin.H{"error": err.Error()})
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(value), true
}

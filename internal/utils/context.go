package utils

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/taskforge-dev/taskforge/internal/authz"
	"github.com/taskforge-dev/taskforge/internal/middleware"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/types"
)

func GetCurrentUser(ctx *gin.Context) (middleware.AuthenticatedUser, error) {
	user, exists := ctx.Get(types.ContextUserKey)

	if !exists {
		return middleware.AuthenticatedUser{}, fmt.Errorf("User not authenticated")
	}

	authenticatedUser, ok := user.(middleware.AuthenticatedUser)

	if !ok {
		return middleware.AuthenticatedUser{}, fmt.Errorf("Invalid user type in context")
	}

	return authenticatedUser, nil
}

// CurrentPrincipal converts the authenticated user on the request context
// into the explicit principal value the services take as a parameter.
func CurrentPrincipal(ctx *gin.Context) (authz.Principal, error) {
	user, err := GetCurrentUser(ctx)
	if err != nil {
		return authz.Principal{}, err
	}

	principal := authz.Principal{UserID: user.ID}
	if user.Role == models.GlobalRoleAdmin {
		principal.GlobalRole = authz.RoleAdmin
	}

	return principal, nil
}

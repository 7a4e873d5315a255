package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/taskforge-dev/taskforge/internal/handlers"
	"github.com/taskforge-dev/taskforge/internal/middleware"
	"github.com/taskforge-dev/taskforge/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api/v1")
	{
		api.GET("/health", handlers.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.POST("/login", handlers.Login)
			auth.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
			auth.POST("/refresh", middleware.AuthMiddleware(), handlers.Refresh)
			auth.GET("/current", middleware.AuthMiddleware(), handlers.Current)
		}

		users := api.Group("/users", middleware.AuthMiddleware())
		{
			users.GET("", handlers.ListUsers)
			users.POST("", handlers.CreateUser)
			users.GET("/:user_id", handlers.GetUser)
			users.PATCH("/:user_id", handlers.UpdateUser)
			users.DELETE("/:user_id", handlers.DeleteUser)
			users.POST("/:user_id/restore", handlers.RestoreUser)
			users.DELETE("/:user_id/force/delete", handlers.ForceDeleteUser)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.GET("", handlers.ListProjects)
			projects.POST("", middleware.RequireAdmin(), handlers.CreateProject)
			projects.GET("/:project_id", handlers.GetProject)
			projects.PATCH("/:project_id", middleware.RequireAdmin(), handlers.UpdateProject)
			projects.DELETE("/:project_id", middleware.RequireAdmin(), handlers.DeleteProject)
			projects.POST("/:project_id/restore", middleware.RequireAdmin(), handlers.RestoreProject)
			projects.DELETE("/:project_id/force/delete", middleware.RequireAdmin(), handlers.ForceDeleteProject)

			projects.GET("/:project_id/tasks", handlers.ListProjectTasks)
			projects.GET("/:project_id/latest/task", handlers.GetLatestTask)
			projects.GET("/:project_id/oldest/task", handlers.GetOldestTask)
			projects.GET("/:project_id/highest/priority/task", handlers.GetHighestPriorityTask)
		}

		tasks := api.Group("/tasks", middleware.AuthMiddleware())
		{
			tasks.GET("", handlers.ListTasks)
			tasks.POST("", handlers.CreateTask)
			tasks.GET("/:task_id", handlers.GetTask)
			tasks.PATCH("/:task_id", handlers.UpdateTask)
			tasks.DELETE("/:task_id", handlers.DeleteTask)
			tasks.POST("/:task_id/restore", handlers.RestoreTask)
			tasks.DELETE("/:task_id/force/delete", handlers.ForceDeleteTask)
		}

		authed := api.Group("", middleware.AuthMiddleware())
		{
			authed.GET("/user/tasks/filter", handlers.FilterTasks)
			authed.GET("/get/users/deleted", handlers.ListDeletedUsers)
			authed.GET("/get/projects/deleted", handlers.ListDeletedProjects)
			authed.GET("/get/tasks/deleted", handlers.ListDeletedTasks)
		}
	}

	return r
}

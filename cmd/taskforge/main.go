package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/taskforge-dev/taskforge/db"
	"github.com/taskforge-dev/taskforge/internal/auth"
	"github.com/taskforge-dev/taskforge/internal/logger"
	"github.com/taskforge-dev/taskforge/internal/router"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Log.Warn("No .env file loaded", zap.Error(err))
	}

	if err := auth.InitJWTSecret(); err != nil {
		logger.Log.Fatal("Failed to initialize JWT secret", zap.Error(err))
	}

	if err := db.ConnectDatabase(os.Getenv("DATABASE_URL")); err != nil {
		logger.Log.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.MigrateDatabase(); err != nil {
		logger.Log.Fatal("Failed to migrate database", zap.Error(err))
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		if err := auth.ConnectDenylist(addr); err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		logger.Log.Info("REDIS_ADDR not set, token revocation disabled")
	}

	r := router.NewRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
		logger.Log.Info("PORT not set, defaulting to 3000")
	}

	if err := r.Run(":" + port); err != nil {
		logger.Log.Fatal("Failed to start server", zap.Error(err))
	}
}

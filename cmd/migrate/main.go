package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"authcore/internal/database"
)

// Applies the collection indexes without starting the server. The server
// also ensures indexes on boot; this binary exists for deploy pipelines
// that run schema setup as a separate step.
func main() {
	_ = godotenv.Load()

	mongoURL := os.Getenv("MONGODB_URL")
	if mongoURL == "" {
		slog.Error("MONGODB_URL is required")
		os.Exit(1)
	}
	dbName := os.Getenv("MONGODB_DATABASE")
	if dbName == "" {
		dbName = "authcore"
	}

	db, err := database.Connect(mongoURL, dbName)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = database.Disconnect(db) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := database.EnsureIndexes(ctx, db); err != nil {
		slog.Error("index setup failed", "error", err)
		os.Exit(1)
	}

	slog.Info("indexes ensured", "database", dbName)
}

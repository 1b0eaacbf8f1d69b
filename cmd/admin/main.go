package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/admin"
	"github.com/elskow/amsterdam-discovery/internal/auth"
	"github.com/elskow/amsterdam-discovery/internal/calculator"
	"github.com/elskow/amsterdam-discovery/internal/database"
	"github.com/elskow/amsterdam-discovery/internal/server"
)

func main() {
	email := flag.String("email", os.Getenv("FIRST_ADMIN_EMAIL"), "email of the registered user to promote")
	flag.Parse()

	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", "development")
	}

	logger, err := server.NewLogger(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *email == "" {
		logger.Fatal("an email is required, pass -email or set FIRST_ADMIN_EMAIL")
	}

	cfg, err := server.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	manager, err := database.NewManager(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer manager.Close()

	svc := admin.NewService(
		manager.DB(),
		auth.NewRepository(manager.DB()),
		calculator.NewRepository(manager.DB()),
		logger.Named("admin"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := svc.PromoteFirstAdmin(ctx, *email)
	switch {
	case errors.Is(err, admin.ErrAdminExists):
		logger.Warn("an admin already exists, nothing to do")
	case errors.Is(err, auth.ErrUserNotFound):
		logger.Error("no registered user with that email, register first", zap.String("email", *email))
		os.Exit(1)
	case err != nil:
		logger.Error("failed to promote admin", zap.Error(err))
		os.Exit(1)
	default:
		logger.Info("admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	}
}

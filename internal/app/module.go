package app

import (
	"context"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/admin"
	"github.com/elskow/amsterdam-discovery/internal/auth"
	"github.com/elskow/amsterdam-discovery/internal/calculator"
	"github.com/elskow/amsterdam-discovery/internal/database"
	"github.com/elskow/amsterdam-discovery/internal/mail"
	"github.com/elskow/amsterdam-discovery/internal/migration"
	"github.com/elskow/amsterdam-discovery/internal/server"
	"github.com/elskow/amsterdam-discovery/internal/throttle"
)

const shutdownTimeout = 10 * time.Second

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Logger
		fx.Provide(newLogger),

		// Configuration
		fx.Provide(server.LoadConfig),

		// Infrastructure
		database.Module(),
		migration.Module(),
		throttle.Module(),
		mail.Module(),

		// Domain
		auth.NewModule(),
		calculator.NewModule(),
		admin.NewModule(),

		// Server
		fx.Provide(server.NewServer),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Stop(ctx)
		},
	})
}

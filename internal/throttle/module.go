package throttle

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/config"
)

// Attempts is what the rest of the application depends on; *Limiter and
// Noop both satisfy it.
type Attempts interface {
	Check(ctx context.Context, keys ...string) error
	Fail(ctx context.Context, keys ...string) error
	Reset(ctx context.Context, keys ...string) error
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(newAttempts),
	)
}

func newAttempts(lifecycle fx.Lifecycle, cfg *config.AppConfig, logger *zap.Logger) Attempts {
	if !cfg.Redis.Enabled {
		logger.Info("attempt throttling disabled, redis not configured")
		return Noop{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("redis unreachable, throttling fails open until it recovers", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return New(client, Config{
		MaxAttempts: cfg.Throttle.MaxAttempts,
		Window:      cfg.Throttle.Window,
	})
}

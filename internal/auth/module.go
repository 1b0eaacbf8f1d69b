package auth

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/amsterdam-discovery/internal/config"
	"github.com/elskow/amsterdam-discovery/internal/mail"
	"github.com/elskow/amsterdam-discovery/internal/throttle"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			// Provide repository
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			// Provide service
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger, repo Repository, sender mail.Sender, limiter throttle.Attempts) (*Service, error) {
					return NewService(&config.Auth, log.Named("auth"), repo, sender, limiter)
				},
			),
			// Provide identity provider
			fx.Annotate(
				func(config *config.AppConfig) IdentityProvider {
					return NewGoogleProvider(&config.OAuth.Google)
				},
			),
			// Provide handler
			fx.Annotate(
				func(svc *Service, provider IdentityProvider, counter CalculationCounter, config *config.AppConfig, log *zap.Logger) *Handler {
					return NewHandler(svc, provider, counter, config, log.Named("auth"))
				},
			),
			// Provide middleware
			fx.Annotate(
				func(config *config.AppConfig, svc *Service, repo Repository, log *zap.Logger) *AuthMiddleware {
					return NewAuthMiddleware(&config.Auth, svc.Tokens(), repo, log.Named("auth"))
				},
			),
		),
	)
}

package admin

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/amsterdam-discovery/internal/auth"
	"github.com/elskow/amsterdam-discovery/internal/calculator"
)

// NewModule returns the admin module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB, users auth.Repository, calcs calculator.Repository, log *zap.Logger) *Service {
					return NewService(db, users, calcs, log.Named("admin"))
				},
			),
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log.Named("admin"))
				},
			),
		),
	)
}

package calculator

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/amsterdam-discovery/internal/auth"
)

// NewModule returns the calculator module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			// The profile endpoint counts calculations through this
			fx.Annotate(
				func(repo Repository) auth.CalculationCounter {
					return repo
				},
			),
			fx.Annotate(
				func(repo Repository, log *zap.Logger) *Service {
					return NewService(repo, log.Named("calculator"))
				},
			),
			fx.Annotate(
				func(svc *Service, log *zap.Logger) *Handler {
					return NewHandler(svc, log.Named("calculator"))
				},
			),
		),
	)
}

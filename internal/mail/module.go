package mail

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/config"
)

// Module provides the outbound mail sender
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig, log *zap.Logger) (Sender, error) {
					return NewSender(&config.Mail, log.Named("mail"))
				},
			),
		),
	)
}

// NewSender picks SMTP delivery when mail is enabled and the log sender
// otherwise.
func NewSender(cfg *config.MailConfig, log *zap.Logger) (Sender, error) {
	if !cfg.Enabled {
		log.Warn("mail delivery disabled, codes will be written to the log")
		return NewLogSender(log), nil
	}
	return NewSMTPSender(cfg, log)
}

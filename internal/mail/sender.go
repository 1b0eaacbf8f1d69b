package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/config"
)

// Sender delivers one plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends through an authenticated SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	from   string
	log    *zap.Logger
}

func NewSMTPSender(cfg *config.MailConfig, log *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail.host is required when mail is enabled")
	}
	if cfg.From == "" {
		return nil, errors.New("mail.from is required when mail is enabled")
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, log: log}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}
	s.log.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// LogSender writes messages to the log instead of sending them. Used in
// development when no relay is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.log.Info("mail delivery disabled, logging message",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/amsterdam-discovery/internal/config"
	"github.com/elskow/amsterdam-discovery/internal/throttle"
)

// Mailer delivers a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	passwords  *Passwords
	emailCodes *Verifier
	loginCodes *Verifier
	tokens     *TokenIssuer
	mailer     Mailer
	limiter    throttle.Attempts
	now        func() time.Time
}

func NewService(
	config *config.AuthConfig,
	log *zap.Logger,
	repo Repository,
	mailer Mailer,
	limiter throttle.Attempts,
) (*Service, error) {
	generate, err := NewCodeGenerator(config.CodeDigits)
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:     config,
		log:        log,
		repository: repo,
		passwords:  NewPasswords(config.BcryptCost),
		tokens:     NewTokenIssuer(config.JWTSecret, config.TokenExpiration),
		mailer:     mailer,
		limiter:    limiter,
		now:        time.Now,
	}
	clock := func() time.Time { return s.now() }
	s.emailCodes = NewVerifier(PurposeEmailVerification, config.VerificationCodeTTL, generate, clock)
	s.loginCodes = NewVerifier(PurposeLogin, config.LoginCodeTTL, generate, clock)
	s.tokens.now = clock

	return s, nil
}

// Tokens exposes the issuer so the HTTP middleware validates what the
// service signs.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

func (s *Service) startSession(user *User) (*Session, error) {
	session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return session, nil
}

func (s *Service) deliverCode(ctx context.Context, user *User, v *Verifier, code string) error {
	subject, body := codeMessage(v, code)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.log.Error("failed to deliver code",
			zap.String("user_id", user.ID),
			zap.Stringer("purpose", v.purpose),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func codeMessage(v *Verifier, code string) (string, string) {
	minutes := int(v.TTL().Minutes())
	if v.purpose == PurposeLogin {
		return "Your Amsterdam login code",
			fmt.Sprintf("Your login code is %s.\n\nIt expires in %d minutes. If you did not try to sign in, change your password.", code, minutes)
	}
	return "Verify your Amsterdam account",
		fmt.Sprintf("Welcome to the Amsterdam Discovery Site!\n\nYour verification code is %s.\n\nIt expires in %d minutes.", code, minutes)
}

func attemptKeys(scope, email, ip string) []string {
	keys := []string{scope + ":email:" + email}
	if ip != "" {
		keys = append(keys, scope+":ip:"+ip)
	}
	return keys
}

// Limiter outages fail open: a lost counter is preferable to locking
// every user out.
func (s *Service) checkAttempts(ctx context.Context, keys []string) error {
	err := s.limiter.Check(ctx, keys...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, throttle.ErrRateLimited):
		s.log.Warn("attempt limit reached", zap.Strings("keys", keys))
		return ErrTooManyAttempts
	default:
		s.log.Warn("attempt limiter unavailable", zap.Error(err))
		return nil
	}
}

func (s *Service) recordFailure(ctx context.Context, keys []string) {
	if err := s.limiter.Fail(ctx, keys...); err != nil && !errors.Is(err, throttle.ErrRateLimited) {
		s.log.Warn("failed to record attempt", zap.Error(err))
	}
}

func (s *Service) resetAttempts(ctx context.Context, keys []string) {
	if err := s.limiter.Reset(ctx, keys...); err != nil {
		s.log.Warn("failed to reset attempts", zap.Error(err))
	}
}

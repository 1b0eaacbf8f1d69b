package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

type LoginState string

const (
	StateCredentialsChecked LoginState = "credentials_checked"
	StateAwaitingMFACode    LoginState = "awaiting_mfa_code"
	StateAuthenticated      LoginState = "authenticated"
	StateRejected           LoginState = "rejected"
)

type LoginRequest struct {
	Email    string
	Password string
	MFACode  string
	ClientIP string
}

// LoginResult is a non-rejected outcome. Session is set only when State is
// StateAuthenticated.
type LoginResult struct {
	State   LoginState
	User    *User
	Session *Session
}

// Login runs one step of the sign-in flow. Rejections come back as errors:
// ErrInvalidCredentials for an unknown email or wrong password alike,
// ErrEmailNotVerified for unverified accounts, ErrInvalidCode for a bad MFA
// code (the caller may resubmit with a new code), ErrDeliveryFailed when
// the issued code could not be mailed.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, invalid("credentials", "email and password are required")
	}

	log := s.log.With(zap.String("email", email))
	keys := attemptKeys("login", email, req.ClientIP)
	if err := s.checkAttempts(ctx, keys); err != nil {
		return nil, err
	}

	var (
		result *LoginResult
		code   string
	)
	err := s.repository.Transact(ctx, func(tx Repository) error {
		user, err := tx.GetUserByEmail(ctx, email)
		if errors.Is(err, ErrUserNotFound) {
			s.passwords.Burn(req.Password)
			log.Info("login rejected", zap.String("reason", "unknown email"))
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}

		// Unverified accounts get the verification outcome whatever the
		// password; the hash is still compared so timing stays uniform.
		passwordOK := s.passwords.Check(user, req.Password)
		if s.requiresVerification(user) {
			log.Info("login rejected", zap.String("reason", "email not verified"))
			return ErrEmailNotVerified
		}
		if !passwordOK {
			log.Info("login rejected",
				zap.String("reason", "password mismatch"),
				zap.String("account_kind", string(user.Kind())))
			return ErrInvalidCredentials
		}
		log.Debug("login transition", zap.String("state", string(StateCredentialsChecked)))

		if !user.MFAEnabled {
			result = &LoginResult{State: StateAuthenticated, User: user}
			return nil
		}

		submitted := strings.TrimSpace(req.MFACode)
		if submitted == "" {
			// Re-entrant: a repeated request replaces any pending code.
			code, err = s.loginCodes.Issue(user)
			if err != nil {
				return err
			}
			if err := tx.SaveUser(ctx, user); err != nil {
				return err
			}
			result = &LoginResult{State: StateAwaitingMFACode, User: user}
			return nil
		}

		if err := s.loginCodes.Consume(user, submitted); err != nil {
			log.Info("login rejected", zap.String("reason", err.Error()))
			return ErrInvalidCode
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		result = &LoginResult{State: StateAuthenticated, User: user}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidCode) {
			s.recordFailure(ctx, keys)
		}
		return nil, err
	}

	if result.State == StateAwaitingMFACode {
		log.Debug("login transition", zap.String("state", string(StateAwaitingMFACode)))
		if err := s.deliverCode(ctx, result.User, s.loginCodes, code); err != nil {
			return nil, err
		}
		return result, nil
	}

	session, err := s.startSession(result.User)
	if err != nil {
		return nil, err
	}
	result.Session = session
	s.resetAttempts(ctx, keys)
	log.Info("login succeeded", zap.String("user_id", result.User.ID))
	return result, nil
}

func (s *Service) requiresVerification(user *User) bool {
	return s.config.RequireEmailVerification && !user.EmailVerified
}

// rejectedState is where a failed login step leaves the caller. A bad MFA
// code keeps the flow at StateAwaitingMFACode so the code can be resubmitted
// with the same credentials; every other failure is terminal.
func rejectedState(err error) LoginState {
	if errors.Is(err, ErrInvalidCode) {
		return StateAwaitingMFACode
	}
	return StateRejected
}

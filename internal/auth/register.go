package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
	minAge            = 13
	maxAge            = 120
)

type RegistrationState string

const (
	RegistrationCodeSent RegistrationState = "code_sent"
	RegistrationComplete RegistrationState = "complete"
)

type RegisterRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	Age             *int
	FirstName       string
	LastName        string
	ClientIP        string
}

type RegisterResult struct {
	State   RegistrationState
	User    *User
	Session *Session
}

// Register validates the signup form, creates the account or reuses an
// unverified one, and mails a verification code. A verified email is a
// conflict. With verification switched off the account is verified and
// signed in immediately.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	email := NormalizeEmail(req.Email)
	if err := validateRegistration(email, req); err != nil {
		return nil, err
	}
	log := s.log.With(zap.String("email", email))

	var (
		user *User
		code string
	)
	err := s.repository.Transact(ctx, func(tx Repository) error {
		existing, err := tx.GetUserByEmail(ctx, email)
		switch {
		case err == nil && existing.EmailVerified:
			return ErrUserExists
		case err == nil:
			log.Info("reusing unverified registration", zap.String("user_id", existing.ID))
			user = existing
		case errors.Is(err, ErrUserNotFound):
			user = &User{Email: email}
		default:
			return err
		}

		user.FirstName = strings.TrimSpace(req.FirstName)
		user.LastName = strings.TrimSpace(req.LastName)
		if req.Age != nil {
			user.Age = req.Age
		}
		if err := s.passwords.Set(user, req.Password); err != nil {
			return err
		}

		if s.config.RequireEmailVerification {
			if code, err = s.emailCodes.Issue(user); err != nil {
				return err
			}
		} else {
			user.EmailVerified = true
			s.emailCodes.Clear(user)
		}

		if user.ID == "" {
			return tx.CreateUser(ctx, user)
		}
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	if code == "" {
		session, err := s.startSession(user)
		if err != nil {
			return nil, err
		}
		log.Info("registration complete without verification", zap.String("user_id", user.ID))
		return &RegisterResult{State: RegistrationComplete, User: user, Session: session}, nil
	}

	if err := s.deliverCode(ctx, user, s.emailCodes, code); err != nil {
		return nil, err
	}
	log.Info("verification code sent", zap.String("user_id", user.ID))
	return &RegisterResult{State: RegistrationCodeSent, User: user}, nil
}

// VerifyEmail accepts the code mailed by Register, marks the email verified
// and signs the user in. Unknown emails, verified accounts, expired and
// wrong codes all fail with ErrInvalidCode.
func (s *Service) VerifyEmail(ctx context.Context, email, code, clientIP string) (*RegisterResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	if strings.TrimSpace(code) == "" {
		return nil, invalid("verification_code", "verification code is required")
	}

	log := s.log.With(zap.String("email", email))
	keys := attemptKeys("verify", email, clientIP)
	if err := s.checkAttempts(ctx, keys); err != nil {
		return nil, err
	}

	var user *User
	err := s.repository.Transact(ctx, func(tx Repository) error {
		found, err := tx.GetUserByEmail(ctx, email)
		if errors.Is(err, ErrUserNotFound) {
			log.Info("verification rejected", zap.String("reason", "unknown email"))
			return ErrInvalidCode
		}
		if err != nil {
			return err
		}
		if found.EmailVerified {
			log.Info("verification rejected", zap.String("reason", "already verified"))
			return ErrInvalidCode
		}

		if err := s.emailCodes.Consume(found, code); err != nil {
			log.Info("verification rejected", zap.String("reason", err.Error()))
			return ErrInvalidCode
		}
		found.EmailVerified = true
		if err := tx.SaveUser(ctx, found); err != nil {
			return err
		}
		user = found
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			s.recordFailure(ctx, keys)
		}
		return nil, err
	}

	session, err := s.startSession(user)
	if err != nil {
		return nil, err
	}
	s.resetAttempts(ctx, keys)
	log.Info("email verified", zap.String("user_id", user.ID))
	return &RegisterResult{State: RegistrationComplete, User: user, Session: session}, nil
}

func validateRegistration(email string, req RegisterRequest) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	if !isValidEmail(email) {
		return invalid("email", "invalid email format")
	}
	if req.Password == "" {
		return invalid("password", "password is required")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return invalid("password", "password must be at least %d characters", minPasswordLength)
	}
	if len(req.Password) > maxPasswordBytes {
		return invalid("password", "password must be at most %d bytes", maxPasswordBytes)
	}
	if req.Password != req.ConfirmPassword {
		return invalid("confirm_password", "passwords do not match")
	}
	if req.Age != nil && (*req.Age < minAge || *req.Age > maxAge) {
		return invalid("user_age", "age must be between %d and %d", minAge, maxAge)
	}
	return nil
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

package auth

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
)

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	return s.repository.GetUserByID(ctx, userID)
}

// SetMFA toggles the second login step. Disabling it drops any login code
// still pending so it can never be redeemed later.
func (s *Service) SetMFA(ctx context.Context, userID string, enabled bool) (*User, error) {
	var user *User
	err := s.repository.Transact(ctx, func(tx Repository) error {
		found, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		found.MFAEnabled = enabled
		if !enabled {
			s.loginCodes.Clear(found)
		}
		user = found
		return tx.SaveUser(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("mfa updated", zap.String("user_id", userID), zap.Bool("enabled", enabled))
	return user, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ChangePassword replaces the password credential. Accounts that have one
// must prove it first; Google-only accounts may set their first password.
func (s *Service) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if utf8.RuneCountInString(req.NewPassword) < minPasswordLength {
		return invalid("new_password", "password must be at least %d characters", minPasswordLength)
	}
	if len(req.NewPassword) > maxPasswordBytes {
		return invalid("new_password", "password must be at most %d bytes", maxPasswordBytes)
	}
	if req.NewPassword != req.ConfirmPassword {
		return invalid("confirm_password", "passwords do not match")
	}

	return s.repository.Transact(ctx, func(tx Repository) error {
		user, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.HasPassword() && !s.passwords.Check(user, req.CurrentPassword) {
			s.log.Info("password change rejected", zap.String("user_id", userID))
			return ErrInvalidCredentials
		}
		if err := s.passwords.Set(user, req.NewPassword); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		s.log.Info("password changed", zap.String("user_id", userID))
		return nil
	})
}

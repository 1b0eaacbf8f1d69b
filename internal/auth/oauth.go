package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Identity is a profile asserted by an external provider after a
// successful sign-in.
type Identity struct {
	ProviderID string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

// IdentityProvider turns an authorization code into a verified Identity.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*Identity, error)
}

type Resolution string

const (
	ResolvedExisting Resolution = "existing"
	ResolvedLinked   Resolution = "linked"
	ResolvedCreated  Resolution = "created"
)

type OAuthResult struct {
	Resolution Resolution
	User       *User
	Session    *Session
}

// ResolveIdentity maps an identity to exactly one local account: the one
// already linked to the provider id, else the one with the same email
// (which gets linked and verified), else a new passwordless account.
// Resolving the same identity twice yields the same user.
func (s *Service) ResolveIdentity(ctx context.Context, identity Identity) (*OAuthResult, error) {
	providerID := strings.TrimSpace(identity.ProviderID)
	email := NormalizeEmail(identity.Email)
	if providerID == "" || email == "" {
		s.log.Warn("identity assertion missing id or email")
		return nil, ErrProviderFailure
	}
	log := s.log.With(zap.String("email", email), zap.String("google_id", providerID))

	var result *OAuthResult
	err := s.repository.Transact(ctx, func(tx Repository) error {
		user, err := tx.GetUserByGoogleID(ctx, providerID)
		if err == nil {
			if identity.Picture != "" {
				user.ProfilePicture = &identity.Picture
			}
			result = &OAuthResult{Resolution: ResolvedExisting, User: user}
			return tx.SaveUser(ctx, user)
		}
		if !errors.Is(err, ErrUserNotFound) {
			return err
		}

		user, err = tx.GetUserByEmail(ctx, email)
		if err == nil {
			if user.IsLinked() {
				log.Warn("email already linked to a different google identity", zap.String("user_id", user.ID))
				return ErrIdentityLinked
			}
			user.GoogleID = &providerID
			applyProfile(user, identity)
			user.EmailVerified = true
			s.emailCodes.Clear(user)
			result = &OAuthResult{Resolution: ResolvedLinked, User: user}
			return tx.SaveUser(ctx, user)
		}
		if !errors.Is(err, ErrUserNotFound) {
			return err
		}

		user = &User{
			Email:         email,
			GoogleID:      &providerID,
			EmailVerified: true,
		}
		applyProfile(user, identity)
		if s.config.DefaultOAuthAge > 0 {
			age := s.config.DefaultOAuthAge
			user.Age = &age
		}
		result = &OAuthResult{Resolution: ResolvedCreated, User: user}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	session, err := s.startSession(result.User)
	if err != nil {
		return nil, err
	}
	result.Session = session
	log.Info("google sign-in resolved",
		zap.String("user_id", result.User.ID),
		zap.String("resolution", string(result.Resolution)))
	return result, nil
}

func applyProfile(user *User, identity Identity) {
	if name := strings.TrimSpace(identity.GivenName); name != "" {
		user.FirstName = name
	}
	if name := strings.TrimSpace(identity.FamilyName); name != "" {
		user.LastName = name
	}
	if identity.Picture != "" {
		picture := identity.Picture
		user.ProfilePicture = &picture
	}
}

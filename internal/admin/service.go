package admin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/amsterdam-discovery/internal/auth"
	"github.com/elskow/amsterdam-discovery/internal/calculator"
)

var (
	ErrSelfAction  = errors.New("admins cannot remove or demote themselves")
	ErrAdminExists = errors.New("an admin account already exists")
)

type UserSummary struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Age               *int      `json:"age"`
	IsAdmin           bool      `json:"is_admin"`
	EmailVerified     bool      `json:"email_verified"`
	MFAEnabled        bool      `json:"mfa_enabled"`
	GoogleID          *string   `json:"google_id"`
	CalculationsCount int64     `json:"calculations_count"`
	CreatedAt         time.Time `json:"created_at"`
}

type Stats struct {
	TotalUsers        int64 `json:"total_users"`
	TotalCalculations int64 `json:"total_calculations"`
	VerifiedUsers     int64 `json:"verified_users"`
	GoogleUsers       int64 `json:"google_users"`
	AdminUsers        int64 `json:"admin_users"`
}

type Service struct {
	db           *gorm.DB
	users        auth.Repository
	calculations calculator.Repository
	log          *zap.Logger
}

func NewService(db *gorm.DB, users auth.Repository, calculations calculator.Repository, log *zap.Logger) *Service {
	return &Service{
		db:           db,
		users:        users,
		calculations: calculations,
		log:          log,
	}
}

func (s *Service) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.calculations.CountsByUser(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, UserSummary{
			ID:                u.ID,
			Email:             u.Email,
			FirstName:         u.FirstName,
			LastName:          u.LastName,
			Age:               u.Age,
			IsAdmin:           u.IsAdmin,
			EmailVerified:     u.EmailVerified,
			MFAEnabled:        u.MFAEnabled,
			GoogleID:          u.GoogleID,
			CalculationsCount: counts[u.ID],
			CreatedAt:         u.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	userStats, err := s.users.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	total, err := s.calculations.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalUsers:        userStats.Total,
		TotalCalculations: total,
		VerifiedUsers:     userStats.Verified,
		GoogleUsers:       userStats.Google,
		AdminUsers:        userStats.Admins,
	}, nil
}

// DeleteUser removes the account and its calculations in one transaction.
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrSelfAction
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.calculations.DeleteByUser(ctx, tx, userID); err != nil {
			return err
		}
		return auth.NewRepository(tx).DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.String("actor_id", actorID), zap.String("user_id", userID))
	return nil
}

// ToggleAdmin flips the admin flag and returns the updated user.
func (s *Service) ToggleAdmin(ctx context.Context, actorID, userID string) (*auth.User, error) {
	if actorID == userID {
		return nil, ErrSelfAction
	}

	var user *auth.User
	err := s.users.Transact(ctx, func(tx auth.Repository) error {
		found, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		found.IsAdmin = !found.IsAdmin
		user = found
		return tx.SaveUser(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("admin flag changed",
		zap.String("actor_id", actorID),
		zap.String("user_id", userID),
		zap.Bool("is_admin", user.IsAdmin))
	return user, nil
}

// PromoteFirstAdmin grants admin rights to a registered user, but only
// while no admin exists yet.
func (s *Service) PromoteFirstAdmin(ctx context.Context, email string) (*auth.User, error) {
	var user *auth.User
	err := s.users.Transact(ctx, func(tx auth.Repository) error {
		stats, err := tx.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.Admins > 0 {
			return ErrAdminExists
		}
		found, err := tx.GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		found.IsAdmin = true
		user = found
		return tx.SaveUser(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("first admin promoted", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

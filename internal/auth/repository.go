package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserStats struct {
	Total    int64
	Verified int64
	Google   int64
	Admins   int64
}

type Repository interface {
	// Transact runs fn against a repository bound to one transaction.
	// Reads inside fn lock the rows they return until commit.
	Transact(ctx context.Context, fn func(tx Repository) error) error

	CreateUser(ctx context.Context, user *User) error
	SaveUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	Stats(ctx context.Context) (UserStats, error)
	DeleteUser(ctx context.Context, id string) error
}

type repository struct {
	db     *gorm.DB
	locked bool
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transact(ctx context.Context, fn func(tx Repository) error) error {
	if r.locked {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx, locked: true})
	})
}

func (r *repository) read(ctx context.Context) *gorm.DB {
	q := r.db.WithContext(ctx)
	if r.locked {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) CreateUser(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

func (r *repository) SaveUser(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrIdentityLinked
		}
		return err
	}
	return nil
}

func (r *repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *repository) GetUserByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return r.first(ctx, "google_id = ?", googleID)
}

func (r *repository) first(ctx context.Context, query string, args ...any) (*User, error) {
	var user User
	if err := r.read(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) Stats(ctx context.Context) (UserStats, error) {
	var stats UserStats
	db := r.db.WithContext(ctx).Model(&User{})

	if err := db.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return UserStats{}, err
	}
	if err := db.Session(&gorm.Session{}).Where("email_verified = ?", true).Count(&stats.Verified).Error; err != nil {
		return UserStats{}, err
	}
	if err := db.Session(&gorm.Session{}).Where("google_id IS NOT NULL").Count(&stats.Google).Error; err != nil {
		return UserStats{}, err
	}
	if err := db.Session(&gorm.Session{}).Where("is_admin = ?", true).Count(&stats.Admins).Error; err != nil {
		return UserStats{}, err
	}
	return stats, nil
}

func (r *repository) DeleteUser(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

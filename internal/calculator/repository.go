package calculator

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, calc *Calculation) error
	ListByUser(ctx context.Context, userID string) ([]Calculation, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountsByUser(ctx context.Context) (map[string]int64, error)
	// DeleteByUser runs inside the caller's transaction when db is one.
	DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create returns ErrUnknownUser when the owning account is gone.
func (r *repository) Create(ctx context.Context, calc *Calculation) error {
	err := r.db.WithContext(ctx).Omit("User").Create(calc).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || !r.userExists(ctx, calc.UserID) {
		return ErrUnknownUser
	}
	return err
}

func (r *repository) userExists(ctx context.Context, userID string) bool {
	var n int64
	if err := r.db.WithContext(ctx).Table("users").Where("id = ?", userID).Count(&n).Error; err != nil {
		return true
	}
	return n > 0
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]Calculation, error) {
	var calcs []Calculation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("calculated_at DESC").
		Order("id DESC").
		Find(&calcs).Error
	if err != nil {
		return nil, err
	}
	return calcs, nil
}

func (r *repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Calculation{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Calculation{}).Count(&count).Error
	return count, err
}

func (r *repository) CountsByUser(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		UserID string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&Calculation{}).
		Select("user_id, COUNT(*) AS count").
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, nil
}

func (r *repository) DeleteByUser(ctx context.Context, db *gorm.DB, userID string) error {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Calculation{}).Error
}

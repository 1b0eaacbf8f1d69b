package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is one account. PasswordHash is nil for accounts created through
// Google sign-in; GoogleID is nil until the account is linked.
type User struct {
	ID             string  `gorm:"primaryKey;size:36"`
	Email          string  `gorm:"size:120;uniqueIndex;not null"`
	PasswordHash   *string `gorm:"size:255"`
	IsAdmin        bool    `gorm:"not null;default:false"`
	Age            *int    `gorm:"column:user_age"`
	GoogleID       *string `gorm:"size:64;uniqueIndex"`
	FirstName      string  `gorm:"size:64;not null;default:''"`
	LastName       string  `gorm:"size:64;not null;default:''"`
	ProfilePicture *string

	EmailVerified       bool       `gorm:"not null;default:false"`
	VerificationCode    *string    `gorm:"size:10"`
	VerificationExpires *time.Time

	MFAEnabled       bool       `gorm:"column:mfa_enabled;not null;default:false"`
	LoginCode        *string    `gorm:"size:10"`
	LoginCodeExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsLinked reports whether a Google identity is attached to the account.
func (u *User) IsLinked() bool {
	return u.GoogleID != nil && *u.GoogleID != ""
}

// Kind describes how the account can authenticate.
func (u *User) Kind() AccountKind {
	switch {
	case u.HasPassword() && u.IsLinked():
		return AccountLinked
	case u.IsLinked():
		return AccountExternal
	default:
		return AccountPassword
	}
}

type AccountKind string

const (
	AccountPassword AccountKind = "password"
	AccountExternal AccountKind = "google"
	AccountLinked   AccountKind = "linked"
)

// NormalizeEmail trims and lower-cases an address; emails are compared
// and stored in this form only.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

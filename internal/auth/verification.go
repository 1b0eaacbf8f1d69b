package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"
)

// CodePurpose selects which pending code/expiry pair on User a Verifier
// works on.
type CodePurpose int

const (
	PurposeEmailVerification CodePurpose = iota
	PurposeLogin
)

func (p CodePurpose) String() string {
	if p == PurposeLogin {
		return "login"
	}
	return "email_verification"
}

// Reasons a code is refused. They are logged, never returned to clients.
var (
	errCodeAbsent   = errors.New("no code pending")
	errCodeExpired  = errors.New("code expired")
	errCodeMismatch = errors.New("code mismatch")
)

// Verifier issues and checks one-time codes stored on the user row. It
// never touches the store; callers persist the user in the same
// transaction that advances the account state.
type Verifier struct {
	purpose  CodePurpose
	ttl      time.Duration
	generate CodeGenerator
	now      func() time.Time
}

func NewVerifier(purpose CodePurpose, ttl time.Duration, generate CodeGenerator, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		purpose:  purpose,
		ttl:      ttl,
		generate: generate,
		now:      now,
	}
}

// Issue stores a new code and expiry on the user, replacing any pending
// one, and returns the code for delivery.
func (v *Verifier) Issue(user *User) (string, error) {
	code, err := v.generate()
	if err != nil {
		return "", err
	}
	expires := v.now().UTC().Add(v.ttl)

	switch v.purpose {
	case PurposeLogin:
		user.LoginCode, user.LoginCodeExpires = &code, &expires
	default:
		user.VerificationCode, user.VerificationExpires = &code, &expires
	}
	return code, nil
}

// Check reports why submitted does not match the pending code, or nil if
// it does. A code is valid strictly before its expiry instant.
func (v *Verifier) Check(user *User, submitted string) error {
	code, expires := v.pending(user)
	if code == nil || expires == nil {
		return errCodeAbsent
	}
	if !v.now().Before(*expires) {
		return errCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(submitted)), []byte(*code)) != 1 {
		return errCodeMismatch
	}
	return nil
}

// Consume checks submitted and, on success, clears the pending pair so the
// code cannot be accepted again once the user is saved.
func (v *Verifier) Consume(user *User, submitted string) error {
	if err := v.Check(user, submitted); err != nil {
		return err
	}
	v.Clear(user)
	return nil
}

// Clear drops the pending code together with its expiry.
func (v *Verifier) Clear(user *User) {
	switch v.purpose {
	case PurposeLogin:
		user.LoginCode, user.LoginCodeExpires = nil, nil
	default:
		user.VerificationCode, user.VerificationExpires = nil, nil
	}
}

func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

func (v *Verifier) pending(user *User) (*string, *time.Time) {
	if v.purpose == PurposeLogin {
		return user.LoginCode, user.LoginCodeExpires
	}
	return user.VerificationCode, user.VerificationExpires
}

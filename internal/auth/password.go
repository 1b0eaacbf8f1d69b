package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Passwords hashes and checks account passwords with bcrypt.
type Passwords struct {
	cost int
}

func NewPasswords(cost int) *Passwords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Passwords{cost: cost}
}

// Set stores a fresh hash of plaintext on the user. An empty plaintext
// leaves the account without a password credential.
func (p *Passwords) Set(user *User, plaintext string) error {
	if plaintext == "" {
		user.PasswordHash = nil
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return err
	}
	encoded := string(hash)
	user.PasswordHash = &encoded
	return nil
}

// Check compares plaintext against the stored hash. Accounts without a
// password credential never match.
func (p *Passwords) Check(user *User, plaintext string) bool {
	if user == nil || !user.HasPassword() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(plaintext)) == nil
}

// Burn spends roughly the time of one hash comparison. Login calls it for
// unknown emails so response time does not reveal whether an account exists.
func (p *Passwords) Burn(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// mockRepository keeps users by value so callers never share state with
// the store, and restores its snapshot when a transaction fails.
type mockRepository struct {
	tx sync.Mutex
	mu sync.Mutex

	users map[string]User

	// failSave, when set, is returned by the next SaveUser/CreateUser.
	failSave error
}

func newMockRepository() *mockRepository {
	return &mockRepository{users: make(map[string]User)}
}

func (r *mockRepository) Transact(_ context.Context, fn func(tx Repository) error) error {
	r.tx.Lock()
	defer r.tx.Unlock()

	snapshot := r.snapshot()
	if err := fn(r); err != nil {
		r.mu.Lock()
		r.users = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *mockRepository) snapshot() map[string]User {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]User, len(r.users))
	for id, u := range r.users {
		cp[id] = u
	}
	return cp
}

func (r *mockRepository) CreateUser(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return err
	}
	user.Email = NormalizeEmail(user.Email)
	for _, u := range r.users {
		if u.Email == user.Email || (user.IsLinked() && u.IsLinked() && *u.GoogleID == *user.GoogleID) {
			return ErrUserExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *mockRepository) SaveUser(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.takeFailure(); err != nil {
		return err
	}
	for id, u := range r.users {
		if id == user.ID {
			continue
		}
		if u.Email == user.Email || (user.IsLinked() && u.IsLinked() && *u.GoogleID == *user.GoogleID) {
			return ErrIdentityLinked
		}
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *mockRepository) takeFailure() error {
	err := r.failSave
	r.failSave = nil
	return err
}

func (r *mockRepository) GetUserByID(_ context.Context, id string) (*User, error) {
	return r.find(func(u User) bool { return u.ID == id })
}

func (r *mockRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	return r.find(func(u User) bool { return u.Email == email })
}

func (r *mockRepository) GetUserByGoogleID(_ context.Context, googleID string) (*User, error) {
	return r.find(func(u User) bool { return u.IsLinked() && *u.GoogleID == googleID })
}

func (r *mockRepository) find(match func(User) bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *mockRepository) ListUsers(_ context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (r *mockRepository) Stats(_ context.Context) (UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats UserStats
	for _, u := range r.users {
		stats.Total++
		if u.EmailVerified {
			stats.Verified++
		}
		if u.IsLinked() {
			stats.Google++
		}
		if u.IsAdmin {
			stats.Admins++
		}
	}
	return stats, nil
}

func (r *mockRepository) DeleteUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *mockRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

var errStoreDown = errors.New("store unavailable")

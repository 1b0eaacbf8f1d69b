package auth

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/elskow/amsterdam-discovery/internal/config"
	"github.com/elskow/amsterdam-discovery/internal/throttle"
)

func newTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:                "test-secret-key",
		TokenExpiration:          time.Hour,
		RequireEmailVerification: true,
		VerificationCodeTTL:      15 * time.Minute,
		LoginCodeTTL:             5 * time.Minute,
		CodeDigits:               6,
		BcryptCost:               4,
		CookieName:               "access_token",
		DefaultOAuthAge:          25,
	}
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode returns the code in the most recent message to "to".
func (m *fakeMailer) lastCode(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == to {
			code := codePattern.FindString(m.sent[i].Body)
			require.NotEmpty(t, code, "no code in message body")
			return code
		}
	}
	t.Fatalf("no mail sent to %s", to)
	return ""
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc    *Service
	repo   *mockRepository
	mailer *fakeMailer
	clock  *fakeClock
}

func newTestEnv(t *testing.T, opts ...func(*config.AuthConfig)) *testEnv {
	return newTestEnvWithLimiter(t, throttle.Noop{}, opts...)
}

func newTestEnvWithLimiter(t *testing.T, limiter throttle.Attempts, opts ...func(*config.AuthConfig)) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	env := &testEnv{
		repo:   newMockRepository(),
		mailer: &fakeMailer{},
		clock:  newFakeClock(),
	}
	svc, err := NewService(cfg, newTestLogger(t), env.repo, env.mailer, limiter)
	require.NoError(t, err)
	svc.now = env.clock.Now
	env.svc = svc
	return env
}

// registerVerified runs the two registration steps and returns the user.
func (e *testEnv) registerVerified(t *testing.T, email, password string) *User {
	t.Helper()
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterRequest{Email: email, Password: password, ConfirmPassword: password})
	require.NoError(t, err)

	result, err := e.svc.VerifyEmail(ctx, email, e.mailer.lastCode(t, NormalizeEmail(email)), "")
	require.NoError(t, err)
	return result.User
}

func (e *testEnv) enableMFA(t *testing.T, userID string) {
	t.Helper()
	_, err := e.svc.SetMFA(context.Background(), userID, true)
	require.NoError(t, err)
}

func intPtr(v int) *int { return &v }

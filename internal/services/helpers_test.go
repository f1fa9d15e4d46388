package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/mocks"
)

// authDeps bundles the mocks behind an AuthServiceImpl under test
type authDeps struct {
	users    *mocks.MockUserRepository
	password *mocks.MockPasswordService
	sessions *mocks.MockSessionStore
	captcha  *mocks.MockCaptchaService
	broker   *mocks.MockSecondFactorBroker
	audit    *mocks.MockAuditLogger
	clock    *testClock
}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// createAuthServiceForTest creates an AuthService with mock dependencies.
// withBroker=false disables the second factor.
func createAuthServiceForTest(t *testing.T, withBroker bool, policy string) (*AuthServiceImpl, *authDeps) {
	t.Helper()

	deps := &authDeps{
		users:    mocks.NewMockUserRepository(),
		password: mocks.NewMockPasswordService(),
		sessions: mocks.NewMockSessionStore(),
		captcha:  mocks.NewMockCaptchaService(),
		audit:    mocks.NewMockAuditLogger(),
		clock:    &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	var broker domain.SecondFactorBroker
	if withBroker {
		deps.broker = mocks.NewMockSecondFactorBroker()
		broker = deps.broker
	}

	svc := NewAuthService(deps.users, deps.password, deps.sessions, deps.captcha, broker, deps.audit, zap.NewNop(), AuthConfig{
		ChallengeTTL:  5 * time.Minute,
		OnUnavailable: policy,
	})
	svc.now = deps.clock.Now
	return svc, deps
}

// createValidUser creates a valid active user whose password is "password123"
func createValidUser(t *testing.T) *domain.UserAccount {
	t.Helper()

	return &domain.UserAccount{
		ID:           1,
		Username:     "alice",
		PasswordHash: "hashed_password123",
		Phone:        "+15550001111",
		IsActive:     true,
	}
}

// withUsers makes the user repository resolve the given accounts
func withUsers(deps *authDeps, users ...*domain.UserAccount) {
	deps.users.FindByUsernameFunc = func(ctx context.Context, username string) (*domain.UserAccount, error) {
		for _, u := range users {
			if u.Username == username {
				return u, nil
			}
		}
		return nil, domain.ErrUserNotFound
	}
	deps.users.FindByIDFunc = func(ctx context.Context, id uint) (*domain.UserAccount, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, domain.ErrUserNotFound
	}
}

// newTestSession creates a persisted empty session
func newTestSession(t *testing.T, deps *authDeps) *domain.SessionRecord {
	t.Helper()
	session := domain.NewSessionRecord(deps.clock.Now(), 7*24*time.Hour)
	if err := deps.sessions.Put(context.Background(), session); err != nil {
		t.Fatalf("failed to store session: %v", err)
	}
	return session
}

package mocks

import (
	"context"

	"github.com/you/bokohub/domain"
)

// MockAdminService implements domain.AdminService interface for testing.
// Without overrides nobody is logged in and every list is empty.
type MockAdminService struct {
	EnsureDefaultFunc  func(ctx context.Context, username, password string) (bool, error)
	LoginFunc          func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error)
	LogoutFunc         func(ctx context.Context, session *domain.SessionRecord) error
	CurrentFunc        func(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error)
	ListAdminsFunc     func(ctx context.Context) ([]domain.AdminAccount, error)
	AddAdminFunc       func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error)
	RemoveAdminFunc    func(ctx context.Context, session *domain.SessionRecord, adminID uint) error
	ListUsersFunc      func(ctx context.Context) ([]domain.UserAccount, error)
	AddUserFunc        func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.UserAccount, error)
	DeactivateUserFunc func(ctx context.Context, session *domain.SessionRecord, userID uint) error
	ResetPasswordFunc  func(ctx context.Context, session *domain.SessionRecord, userID uint, newPassword string) error
}

// NewMockAdminService creates a new MockAdminService with default behaviors
func NewMockAdminService() *MockAdminService {
	return &MockAdminService{}
}

func (m *MockAdminService) EnsureDefault(ctx context.Context, username, password string) (bool, error) {
	if m.EnsureDefaultFunc != nil {
		return m.EnsureDefaultFunc(ctx, username, password)
	}
	return false, nil
}

func (m *MockAdminService) Login(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, session, username, password)
	}
	return nil, domain.ErrInvalidCredentials
}

func (m *MockAdminService) Logout(ctx context.Context, session *domain.SessionRecord) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, session)
	}
	session.AdminLogout()
	return nil
}

func (m *MockAdminService) Current(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx, session)
	}
	return nil, nil
}

func (m *MockAdminService) ListAdmins(ctx context.Context) ([]domain.AdminAccount, error) {
	if m.ListAdminsFunc != nil {
		return m.ListAdminsFunc(ctx)
	}
	return nil, nil
}

func (m *MockAdminService) AddAdmin(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
	if m.AddAdminFunc != nil {
		return m.AddAdminFunc(ctx, session, username, password)
	}
	return nil, domain.ErrForbidden
}

func (m *MockAdminService) RemoveAdmin(ctx context.Context, session *domain.SessionRecord, adminID uint) error {
	if m.RemoveAdminFunc != nil {
		return m.RemoveAdminFunc(ctx, session, adminID)
	}
	return domain.ErrForbidden
}

func (m *MockAdminService) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx)
	}
	return nil, nil
}

func (m *MockAdminService) AddUser(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.UserAccount, error) {
	if m.AddUserFunc != nil {
		return m.AddUserFunc(ctx, session, username, password)
	}
	return nil, domain.ErrForbidden
}

func (m *MockAdminService) DeactivateUser(ctx context.Context, session *domain.SessionRecord, userID uint) error {
	if m.DeactivateUserFunc != nil {
		return m.DeactivateUserFunc(ctx, session, userID)
	}
	return domain.ErrForbidden
}

func (m *MockAdminService) ResetPassword(ctx context.Context, session *domain.SessionRecord, userID uint, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, session, userID, newPassword)
	}
	return domain.ErrForbidden
}

// Compile-time interface compliance verification
var _ domain.AdminService = (*MockAdminService)(nil)

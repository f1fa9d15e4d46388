package mocks

import (
	"context"

	"github.com/you/bokohub/domain"
)

// MockUserRepository implements domain.UserRepository interface for testing
type MockUserRepository struct {
	CreateFunc         func(ctx context.Context, user *domain.UserAccount) error
	FindByUsernameFunc func(ctx context.Context, username string) (*domain.UserAccount, error)
	FindByIDFunc       func(ctx context.Context, id uint) (*domain.UserAccount, error)
	ListActiveFunc     func(ctx context.Context) ([]domain.UserAccount, error)
	UpdatePasswordFunc func(ctx context.Context, id uint, passwordHash string) error
	DeactivateFunc     func(ctx context.Context, id uint) error
}

// NewMockUserRepository creates a new MockUserRepository with default behaviors
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

// Create creates a new user
func (m *MockUserRepository) Create(ctx context.Context, user *domain.UserAccount) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	// Default behavior: success
	return nil
}

// FindByUsername finds a user by username
func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(ctx, username)
	}
	// Default behavior: not found
	return nil, domain.ErrUserNotFound
}

// FindByID finds a user by ID
func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.UserAccount, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	// Default behavior: not found
	return nil, domain.ErrUserNotFound
}

// ListActive lists active users
func (m *MockUserRepository) ListActive(ctx context.Context) ([]domain.UserAccount, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return nil, nil
}

// UpdatePassword replaces a user's password hash
func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

// Deactivate disables a user account
func (m *MockUserRepository) Deactivate(ctx context.Context, id uint) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, id)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.UserRepository = (*MockUserRepository)(nil)

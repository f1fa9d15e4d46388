package mocks

import (
	"context"

	"github.com/you/bokohub/domain"
)

// MockOTPService implements domain.OTPService interface for testing
type MockOTPService struct {
	GenerateFunc  func(ctx context.Context, challengeKey, phone string) error
	VerifyFunc    func(ctx context.Context, challengeKey, code string) (bool, error)
	CanResendFunc func(ctx context.Context, phone string) (bool, int64, error)
}

// NewMockOTPService creates a new MockOTPService with default behaviors
func NewMockOTPService() *MockOTPService {
	return &MockOTPService{}
}

// Generate creates and sends a code
func (m *MockOTPService) Generate(ctx context.Context, challengeKey, phone string) error {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, challengeKey, phone)
	}
	return nil
}

// Verify checks a code
func (m *MockOTPService) Verify(ctx context.Context, challengeKey, code string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, challengeKey, code)
	}
	// Default behavior: "123456" is the only valid code
	if code != "123456" {
		return false, domain.ErrOTPInvalid
	}
	return true, nil
}

// CanResend reports whether a new code may be sent
func (m *MockOTPService) CanResend(ctx context.Context, phone string) (bool, int64, error) {
	if m.CanResendFunc != nil {
		return m.CanResendFunc(ctx, phone)
	}
	return true, 0, nil
}

// Compile-time interface compliance verification
var _ domain.OTPService = (*MockOTPService)(nil)

package mocks

import (
	"context"

	"github.com/you/bokohub/domain"
)

// MockSecondFactorBroker implements domain.SecondFactorBroker interface for testing
type MockSecondFactorBroker struct {
	HealthCheckFunc       func(ctx context.Context) error
	BeginChallengeFunc    func(ctx context.Context, user *domain.UserAccount, stateNonce string) (string, error)
	CompleteChallengeFunc func(ctx context.Context, code string, user *domain.UserAccount) error

	BeginCalls    int
	CompleteCalls int
}

// NewMockSecondFactorBroker creates a new MockSecondFactorBroker with default behaviors
func NewMockSecondFactorBroker() *MockSecondFactorBroker {
	return &MockSecondFactorBroker{}
}

// Name returns the broker name
func (m *MockSecondFactorBroker) Name() string { return "mock" }

// HealthCheck reports provider health
func (m *MockSecondFactorBroker) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return nil
}

// BeginChallenge returns a redirect URL carrying the state nonce
func (m *MockSecondFactorBroker) BeginChallenge(ctx context.Context, user *domain.UserAccount, stateNonce string) (string, error) {
	m.BeginCalls++
	if m.BeginChallengeFunc != nil {
		return m.BeginChallengeFunc(ctx, user, stateNonce)
	}
	return "https://2fa.example.com/prompt?state=" + stateNonce, nil
}

// CompleteChallenge accepts "good-code" by default
func (m *MockSecondFactorBroker) CompleteChallenge(ctx context.Context, code string, user *domain.UserAccount) error {
	m.CompleteCalls++
	if m.CompleteChallengeFunc != nil {
		return m.CompleteChallengeFunc(ctx, code, user)
	}
	if code != "good-code" {
		return domain.ErrSecondFactorDenied
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.SecondFactorBroker = (*MockSecondFactorBroker)(nil)

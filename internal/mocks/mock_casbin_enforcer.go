package mocks

import "github.com/you/bokohub/domain"

// MockCasbinEnforcer implements the CasbinEnforcer interface for testing
type MockCasbinEnforcer struct {
	EnforceFunc func(rvals ...interface{}) (bool, error)
	policies    map[[3]string]bool
}

// Compile-time interface compliance verification
var _ domain.CasbinEnforcer = (*MockCasbinEnforcer)(nil)

// NewMockCasbinEnforcer creates a new MockCasbinEnforcer that denies everything
// not explicitly allowed
func NewMockCasbinEnforcer() *MockCasbinEnforcer {
	return &MockCasbinEnforcer{policies: make(map[[3]string]bool)}
}

// Allow registers an exact (subject, path, method) rule
func (m *MockCasbinEnforcer) Allow(sub, obj, act string) *MockCasbinEnforcer {
	m.policies[[3]string{sub, obj, act}] = true
	return m
}

// Enforce checks if a request should be allowed
func (m *MockCasbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	if m.EnforceFunc != nil {
		return m.EnforceFunc(rvals...)
	}
	if len(rvals) < 3 {
		return false, nil
	}
	var key [3]string
	for i := 0; i < 3; i++ {
		s, ok := rvals[i].(string)
		if !ok {
			return false, nil
		}
		key[i] = s
	}
	return m.policies[key], nil
}

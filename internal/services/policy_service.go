package services

import (
	"fmt"

	"github.com/you/bokohub/domain"
)

// PolicyServiceImpl implements domain.PolicyService using Casbin
type PolicyServiceImpl struct {
	enforcer domain.CasbinEnforcer
}

// NewPolicyService creates a new policy service
func NewPolicyService(enforcer domain.CasbinEnforcer) *PolicyServiceImpl {
	return &PolicyServiceImpl{enforcer: enforcer}
}

// Authorize implements domain.PolicyService
func (p *PolicyServiceImpl) Authorize(subject, path, method string) (bool, error) {
	allowed, err := p.enforcer.Enforce(subject, path, method)
	if err != nil {
		return false, fmt.Errorf("failed to enforce policy: %w", err)
	}
	return allowed, nil
}

var _ domain.PolicyService = (*PolicyServiceImpl)(nil)

package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"github.com/you/bokohub/domain"
)

// DefaultModel authorizes requests by auth state. Subjects are domain.AuthState
// values plus domain.SubjectAdmin; authenticated and admin sessions inherit
// everything an anonymous one may do.
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicies are seeded when the policy table is empty
var DefaultPolicies = [][]string{
	{string(domain.StateAnonymous), "/api/captcha", "^GET$"},
	{string(domain.StateAnonymous), "/api/register", "^POST$"},
	{string(domain.StateAnonymous), "/api/login", "^POST$"},
	{string(domain.StateAnonymous), "/api/duo-callback", "^GET$"},
	{string(domain.StateAnonymous), "/api/2fa/callback", "^GET$"},
	{string(domain.StateAnonymous), "/api/auth/status", "^GET$"},
	{string(domain.StateAnonymous), "/api/logout", "^(GET|POST)$"},
	{string(domain.StateAnonymous), "/api/admin-check", "^GET$"},
	{string(domain.StateAnonymous), "/api/admin/login", "^POST$"},
	{string(domain.StateAnonymous), "/api/admin/logout", "^POST$"},
	{string(domain.StateAuthenticated), "/api/notes", "^GET$"},
	{string(domain.StateAuthenticated), "/api/notes/*", "^(GET|POST|DELETE)$"},
	{string(domain.StateAuthenticated), "/api/files", "^GET$"},
	{string(domain.StateAuthenticated), "/api/files/*", "^(GET|POST|DELETE)$"},
	{string(domain.StateAuthenticated), "/api/codescan", "^POST$"},
	{domain.SubjectAdmin, "/api/admin/users", "^GET$"},
	{domain.SubjectAdmin, "/api/admin/users/*", "^(POST|DELETE)$"},
	{domain.SubjectAdmin, "/api/admin/add", "^POST$"},
	{domain.SubjectAdmin, "/api/admin/remove/:id", "^POST$"},
}

// DefaultGroupings make every other subject inherit the anonymous permissions
var DefaultGroupings = [][]string{
	{string(domain.StatePendingSecondFactor), string(domain.StateAnonymous)},
	{string(domain.StateAuthenticated), string(domain.StateAnonymous)},
	{domain.SubjectAdmin, string(domain.StateAnonymous)},
}

type CasbinService struct{ E *casbin.Enforcer }

// NewCasbinService builds an enforcer persisted through the GORM adapter. An
// empty modelPath uses DefaultModel.
func NewCasbinService(db *gorm.DB, modelPath string) (*CasbinService, error) {
	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}
	E, err := casbin.NewEnforcer(m, adp)
	if err != nil {
		return nil, err
	}
	if err := E.LoadPolicy(); err != nil {
		return nil, err
	}
	return &CasbinService{E}, nil
}

// NewMemoryCasbinService builds an enforcer without persistence
func NewMemoryCasbinService() (*CasbinService, error) {
	m, err := loadModel("")
	if err != nil {
		return nil, err
	}
	E, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	return &CasbinService{E}, nil
}

// SeedDefaults installs the default policies when none exist. It reports
// whether anything was written.
func (s *CasbinService) SeedDefaults() (bool, error) {
	policies, err := s.E.GetPolicy()
	if err != nil {
		return false, err
	}
	if len(policies) > 0 {
		return false, nil
	}
	if _, err := s.E.AddPolicies(DefaultPolicies); err != nil {
		return false, fmt.Errorf("seed policies: %w", err)
	}
	if _, err := s.E.AddGroupingPolicies(DefaultGroupings); err != nil {
		return false, fmt.Errorf("seed groupings: %w", err)
	}
	return true, nil
}

func loadModel(path string) (model.Model, error) {
	if path == "" {
		return model.NewModelFromString(DefaultModel)
	}
	return model.NewModelFromFile(path)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// AdminServiceImpl implements domain.AdminService
type AdminServiceImpl struct {
	admins      domain.AdminRepository
	users       domain.UserRepository
	passwordSvc domain.PasswordService
	sessions    domain.SessionStore
	audit       domain.AuditLogger
	logger      *zap.Logger

	dummyHash string
}

// NewAdminService creates a new admin service
func NewAdminService(
	admins domain.AdminRepository,
	users domain.UserRepository,
	passwordSvc domain.PasswordService,
	sessions domain.SessionStore,
	audit domain.AuditLogger,
	logger *zap.Logger,
) *AdminServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	dummyHash, err := passwordSvc.Hash("bokohub-admin-timing-equalizer")
	if err != nil {
		logger.Warn("failed to prepare dummy admin password hash", zap.Error(err))
	}
	return &AdminServiceImpl{
		admins:      admins,
		users:       users,
		passwordSvc: passwordSvc,
		sessions:    sessions,
		audit:       audit,
		logger:      logger,
		dummyHash:   dummyHash,
	}
}

// EnsureDefault creates the default admin when no admin exists yet. It reports
// whether an account was created.
func (s *AdminServiceImpl) EnsureDefault(ctx context.Context, username, password string) (bool, error) {
	count, err := s.admins.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return false, domain.ErrMissingCredentials
	}

	hash, err := s.passwordSvc.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &domain.AdminAccount{Username: username, PasswordHash: hash, IsDefault: true}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrAdminAlreadyExists) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create default admin: %w", err)
	}
	return true, nil
}

// Login implements domain.AdminService. The user login held by the session is
// left alone.
func (s *AdminServiceImpl) Login(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
	if username == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}
	session.AdminLogout()

	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrAdminNotFound) {
			return nil, fmt.Errorf("failed to look up admin: %w", err)
		}
		s.passwordSvc.Verify(s.dummyHash, password)
		s.record(ctx, domain.NewAuditEvent(domain.AdminLoginFailureEvent, 0).
			WithUsername(username).
			WithError(domain.ErrAdminNotFound))
		return nil, domain.ErrInvalidCredentials
	}
	if !s.passwordSvc.Verify(admin.PasswordHash, password) {
		s.record(ctx, domain.NewAuditEvent(domain.AdminLoginFailureEvent, 0).
			WithUsername(username).
			WithError(domain.ErrInvalidCredentials))
		return nil, domain.ErrInvalidCredentials
	}

	session.AdminLogin(admin)
	s.record(ctx, domain.NewAuditEvent(domain.AdminLoginEvent, 0).
		WithUsername(admin.Username).
		WithMetadata("admin_id", admin.ID))
	return admin, nil
}

// Logout implements domain.AdminService
func (s *AdminServiceImpl) Logout(ctx context.Context, session *domain.SessionRecord) error {
	if !session.IsAdmin() {
		return nil
	}
	username := session.AdminUsername
	session.AdminLogout()
	s.record(ctx, domain.NewAuditEvent(domain.AdminLogoutEvent, 0).WithUsername(username))
	return nil
}

// Current returns the admin behind the session, or nil when there is none. A
// session pointing at a removed admin loses its admin login.
func (s *AdminServiceImpl) Current(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error) {
	if session == nil || !session.IsAdmin() {
		return nil, nil
	}
	admin, err := s.admins.FindByID(ctx, session.AdminID)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			session.AdminLogout()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}
	return admin, nil
}

// ListAdmins implements domain.AdminService
func (s *AdminServiceImpl) ListAdmins(ctx context.Context) ([]domain.AdminAccount, error) {
	return s.admins.List(ctx)
}

// AddAdmin implements domain.AdminService. Only the default admin may add.
func (s *AdminServiceImpl) AddAdmin(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.AdminAccount, error) {
	actor, err := s.requireDefault(ctx, session)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}

	hash, err := s.passwordSvc.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &domain.AdminAccount{Username: username, PasswordHash: hash}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, domain.ErrAdminAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	s.record(ctx, domain.NewAuditEvent(domain.AdminAddedEvent, 0).
		WithUsername(actor.Username).
		WithMetadata("admin_id", admin.ID).
		WithMetadata("admin_username", admin.Username))
	return admin, nil
}

// RemoveAdmin implements domain.AdminService. Only the default admin may
// remove, and the default admin itself is never removed.
func (s *AdminServiceImpl) RemoveAdmin(ctx context.Context, session *domain.SessionRecord, adminID uint) error {
	actor, err := s.requireDefault(ctx, session)
	if err != nil {
		return err
	}
	if err := s.admins.Delete(ctx, adminID); err != nil {
		return err
	}
	s.record(ctx, domain.NewAuditEvent(domain.AdminRemovedEvent, 0).
		WithUsername(actor.Username).
		WithMetadata("admin_id", adminID))
	return nil
}

// ListUsers implements domain.AdminService
func (s *AdminServiceImpl) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return s.users.ListActive(ctx)
}

// AddUser implements domain.AdminService
func (s *AdminServiceImpl) AddUser(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.UserAccount, error) {
	actor, err := s.requireAdmin(ctx, session)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}

	if existing, err := s.users.FindByUsername(ctx, username); err == nil && existing != nil {
		return nil, domain.ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.passwordSvc.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &domain.UserAccount{Username: username, PasswordHash: hash, IsActive: true}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.record(ctx, domain.NewAuditEvent(domain.AdminUserCreatedEvent, user.ID).
		WithUsername(actor.Username).
		WithMetadata("target_username", user.Username))
	return user, nil
}

// DeactivateUser implements domain.AdminService. The account is kept for its
// notes and files, and every session it holds is revoked.
func (s *AdminServiceImpl) DeactivateUser(ctx context.Context, session *domain.SessionRecord, userID uint) error {
	actor, err := s.requireAdmin(ctx, session)
	if err != nil {
		return err
	}
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.DestroyUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.record(ctx, domain.NewAuditEvent(domain.AdminUserDeactivatedEvent, userID).WithUsername(actor.Username))
	return nil
}

// ResetPassword implements domain.AdminService. Existing sessions of the user
// are revoked so the old password stops mattering at once.
func (s *AdminServiceImpl) ResetPassword(ctx context.Context, session *domain.SessionRecord, userID uint, newPassword string) error {
	actor, err := s.requireAdmin(ctx, session)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return domain.ErrMissingCredentials
	}

	hash, err := s.passwordSvc.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.sessions.DestroyUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.record(ctx, domain.NewAuditEvent(domain.AdminPasswordResetEvent, userID).WithUsername(actor.Username))
	return nil
}

func (s *AdminServiceImpl) requireAdmin(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error) {
	admin, err := s.Current(ctx, session)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, domain.ErrForbidden
	}
	return admin, nil
}

func (s *AdminServiceImpl) requireDefault(ctx context.Context, session *domain.SessionRecord) (*domain.AdminAccount, error) {
	admin, err := s.requireAdmin(ctx, session)
	if err != nil {
		return nil, err
	}
	if !admin.IsDefault {
		return nil, domain.ErrNotDefaultAdmin
	}
	return admin, nil
}

func (s *AdminServiceImpl) record(ctx context.Context, event *domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, event.WithClientContext(domain.ClientContextFrom(ctx)))
}

var _ domain.AdminService = (*AdminServiceImpl)(nil)

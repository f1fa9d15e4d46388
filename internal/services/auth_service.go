package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// Policies applied when the second-factor provider cannot be reached before a
// challenge starts.
const (
	UnavailableDeny   = "deny"
	UnavailableBypass = "bypass"
)

const stateNonceBytes = 32

// AuthConfig holds the login flow settings
type AuthConfig struct {
	// ChallengeTTL bounds how long a pending second factor stays valid
	ChallengeTTL  time.Duration
	OnUnavailable string
}

// AuthServiceImpl implements domain.AuthService
type AuthServiceImpl struct {
	userRepo    domain.UserRepository
	passwordSvc domain.PasswordService
	sessions    domain.SessionStore
	captchaSvc  domain.CaptchaService
	broker      domain.SecondFactorBroker
	audit       domain.AuditLogger
	logger      *zap.Logger
	config      AuthConfig

	dummyHash string
	now       func() time.Time
	newNonce  func() (string, error)
}

// NewAuthService creates a new auth service. A nil broker disables the second
// factor.
func NewAuthService(
	userRepo domain.UserRepository,
	passwordSvc domain.PasswordService,
	sessions domain.SessionStore,
	captchaSvc domain.CaptchaService,
	broker domain.SecondFactorBroker,
	audit domain.AuditLogger,
	logger *zap.Logger,
	config AuthConfig,
) *AuthServiceImpl {
	if config.ChallengeTTL <= 0 {
		config.ChallengeTTL = 5 * time.Minute
	}
	if config.OnUnavailable == "" {
		config.OnUnavailable = UnavailableDeny
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Compared against when the username is unknown so both paths pay for one hash check.
	dummyHash, err := passwordSvc.Hash("bokohub-timing-equalizer")
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}

	return &AuthServiceImpl{
		userRepo:    userRepo,
		passwordSvc: passwordSvc,
		sessions:    sessions,
		captchaSvc:  captchaSvc,
		broker:      broker,
		audit:       audit,
		logger:      logger,
		config:      config,
		dummyHash:   dummyHash,
		now:         time.Now,
		newNonce:    newStateNonce,
	}
}

// Register implements domain.AuthService
func (s *AuthServiceImpl) Register(ctx context.Context, session *domain.SessionRecord, username, password, phone, captcha string) (*domain.UserAccount, error) {
	if !s.captchaSvc.Verify(session, captcha) {
		return nil, domain.ErrInvalidCaptcha
	}
	if username == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}

	// Check if user already exists
	if existing, err := s.userRepo.FindByUsername(ctx, username); err == nil && existing != nil {
		return nil, domain.ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hashedPassword, err := s.passwordSvc.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.UserAccount{
		Username:     username,
		PasswordHash: hashedPassword,
		Phone:        phone,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.record(ctx, domain.NewAuditEvent(domain.UserRegistrationEvent, user.ID).WithUsername(username))
	return user, nil
}

// Login implements domain.AuthService. Whatever the session held before is
// discarded; the outcome is either a full login or a pending second factor.
func (s *AuthServiceImpl) Login(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.LoginResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}
	session.Reset()

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		s.passwordSvc.Verify(s.dummyHash, password)
		s.loginFailed(ctx, 0, username, domain.ErrUserNotFound)
		return nil, domain.ErrInvalidCredentials
	}

	if !s.passwordSvc.Verify(user.PasswordHash, password) {
		s.loginFailed(ctx, user.ID, username, domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID, username, domain.ErrUserInactive)
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCredentials, domain.ErrUserInactive)
	}

	if s.broker == nil {
		return s.authenticate(ctx, session, user, false), nil
	}
	return s.beginSecondFactor(ctx, session, user)
}

func (s *AuthServiceImpl) beginSecondFactor(ctx context.Context, session *domain.SessionRecord, user *domain.UserAccount) (*domain.LoginResult, error) {
	if err := s.broker.HealthCheck(ctx); err != nil {
		return s.brokerUnavailable(ctx, session, user, err)
	}

	nonce, err := s.newNonce()
	if err != nil {
		return nil, err
	}
	session.BeginPending(nonce, user, s.now().Add(s.config.ChallengeTTL))

	// The state must be stored before the user can possibly come back with it.
	if err := s.sessions.Put(ctx, session); err != nil {
		session.ClearPending()
		return nil, fmt.Errorf("failed to persist pending login: %w", err)
	}

	redirectURL, err := s.broker.BeginChallenge(ctx, user, nonce)
	if err != nil {
		session.ClearPending()
		if errors.Is(err, domain.ErrBrokerUnavailable) {
			return s.brokerUnavailable(ctx, session, user, err)
		}
		s.record(ctx, domain.NewAuditEvent(domain.SecondFactorFailureEvent, user.ID).
			WithUsername(user.Username).
			WithMetadata("provider", s.broker.Name()).
			WithError(err))
		return nil, err
	}

	s.record(ctx, domain.NewAuditEvent(domain.SecondFactorBeginEvent, user.ID).
		WithUsername(user.Username).
		WithMetadata("provider", s.broker.Name()))

	return &domain.LoginResult{
		State:       domain.StatePendingSecondFactor,
		User:        user,
		RedirectURL: redirectURL,
	}, nil
}

func (s *AuthServiceImpl) brokerUnavailable(ctx context.Context, session *domain.SessionRecord, user *domain.UserAccount, cause error) (*domain.LoginResult, error) {
	s.logger.Warn("second factor provider unavailable",
		zap.String("provider", s.broker.Name()),
		zap.String("policy", s.config.OnUnavailable),
		zap.Error(cause))
	s.record(ctx, domain.NewAuditEvent(domain.SecondFactorOutageEvent, user.ID).
		WithUsername(user.Username).
		WithMetadata("provider", s.broker.Name()).
		WithMetadata("policy", s.config.OnUnavailable).
		WithError(cause))

	if s.config.OnUnavailable == UnavailableBypass {
		s.record(ctx, domain.NewAuditEvent(domain.SecondFactorBypassEvent, user.ID).
			WithUsername(user.Username).
			WithMetadata("provider", s.broker.Name()))
		return s.authenticate(ctx, session, user, true), nil
	}

	if errors.Is(cause, domain.ErrBrokerUnavailable) {
		return nil, cause
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrBrokerUnavailable, cause)
}

// CompleteSecondFactor implements domain.AuthService. state must match the
// nonce stored at Login; the nonce is spent whatever the outcome.
func (s *AuthServiceImpl) CompleteSecondFactor(ctx context.Context, session *domain.SessionRecord, state, code string) (*domain.LoginResult, error) {
	pendingNonce := session.PendingStateNonce
	pendingUserID := session.PendingUserID
	pendingUsername := session.PendingUsername
	deadline := session.PendingExpiresAt

	if pendingNonce == "" || pendingUserID == 0 {
		s.stateMismatch(ctx, pendingUserID, pendingUsername, "no pending challenge")
		return nil, domain.ErrInvalidState
	}
	if subtle.ConstantTimeCompare([]byte(pendingNonce), []byte(state)) != 1 {
		s.stateMismatch(ctx, pendingUserID, pendingUsername, "nonce mismatch")
		return nil, domain.ErrInvalidState
	}

	// Single use from here on, including on failure.
	session.ClearPending()
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to consume pending login: %w", err)
	}

	if !s.now().Before(deadline) {
		s.record(ctx, domain.NewAuditEvent(domain.SecondFactorFailureEvent, pendingUserID).
			WithUsername(pendingUsername).
			WithError(domain.ErrSessionExpired))
		return nil, domain.ErrSessionExpired
	}

	user, err := s.userRepo.FindByID(ctx, pendingUserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.stateMismatch(ctx, pendingUserID, pendingUsername, "pending user no longer exists")
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.Username != pendingUsername || !user.IsActive {
		s.stateMismatch(ctx, pendingUserID, pendingUsername, "pending user changed")
		return nil, domain.ErrInvalidState
	}

	if s.broker == nil {
		return nil, domain.ErrInvalidState
	}
	if err := s.broker.CompleteChallenge(ctx, code, user); err != nil {
		s.record(ctx, domain.NewAuditEvent(domain.SecondFactorFailureEvent, user.ID).
			WithUsername(user.Username).
			WithMetadata("provider", s.broker.Name()).
			WithError(err))
		if errors.Is(err, domain.ErrBrokerUnavailable) {
			s.logger.Warn("second factor exchange failed", zap.String("provider", s.broker.Name()), zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSecondFactorDenied, err)
	}

	s.record(ctx, domain.NewAuditEvent(domain.SecondFactorSuccessEvent, user.ID).
		WithUsername(user.Username).
		WithMetadata("provider", s.broker.Name()))
	return s.authenticate(ctx, session, user, false), nil
}

// Logout implements domain.AuthService
func (s *AuthServiceImpl) Logout(ctx context.Context, session *domain.SessionRecord) error {
	userID, username := session.AuthenticatedUserID, session.AuthenticatedUsername
	session.Destroy()
	if userID != 0 {
		s.record(ctx, domain.NewAuditEvent(domain.UserLogoutEvent, userID).WithUsername(username))
	}
	return nil
}

// Status implements domain.AuthService
func (s *AuthServiceImpl) Status(ctx context.Context, session *domain.SessionRecord) (*domain.AuthStatus, error) {
	state := session.State(s.now())
	if state != domain.StateAuthenticated {
		return &domain.AuthStatus{State: state}, nil
	}
	return &domain.AuthStatus{
		State: state,
		Identity: &domain.Identity{
			ID:       session.AuthenticatedUserID,
			Username: session.AuthenticatedUsername,
		},
	}, nil
}

func (s *AuthServiceImpl) authenticate(ctx context.Context, session *domain.SessionRecord, user *domain.UserAccount, bypassed bool) *domain.LoginResult {
	session.Authenticate(user)
	s.record(ctx, domain.NewAuditEvent(domain.UserLoginEvent, user.ID).
		WithUsername(user.Username).
		WithMetadata("second_factor_bypassed", bypassed))
	return &domain.LoginResult{
		State:    domain.StateAuthenticated,
		User:     user,
		Bypassed: bypassed,
	}
}

func (s *AuthServiceImpl) loginFailed(ctx context.Context, userID uint, username string, cause error) {
	s.record(ctx, domain.NewAuditEvent(domain.UserLoginFailureEvent, userID).
		WithUsername(username).
		WithError(cause))
}

func (s *AuthServiceImpl) stateMismatch(ctx context.Context, userID uint, username, reason string) {
	s.record(ctx, domain.NewAuditEvent(domain.SecondFactorStateMismatch, userID).
		WithUsername(username).
		WithMetadata("reason", reason).
		WithError(domain.ErrInvalidState))
}

func (s *AuthServiceImpl) record(ctx context.Context, event *domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, event.WithClientContext(domain.ClientContextFrom(ctx)))
}

func newStateNonce() (string, error) {
	buf := make([]byte, stateNonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

var _ domain.AuthService = (*AuthServiceImpl)(nil)

package domain

import (
	"context"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Authentication events
	UserLoginEvent        AuditEventType = "USER_LOGIN"
	UserLoginFailureEvent AuditEventType = "USER_LOGIN_FAILED"
	UserRegistrationEvent AuditEventType = "USER_REGISTERED"
	UserLogoutEvent       AuditEventType = "USER_LOGOUT"

	// Second factor events
	SecondFactorBeginEvent    AuditEventType = "SECOND_FACTOR_CHALLENGE"
	SecondFactorSuccessEvent  AuditEventType = "SECOND_FACTOR_VERIFIED"
	SecondFactorFailureEvent  AuditEventType = "SECOND_FACTOR_FAILED"
	SecondFactorStateMismatch AuditEventType = "SECOND_FACTOR_STATE_MISMATCH"
	SecondFactorBypassEvent   AuditEventType = "SECOND_FACTOR_BYPASSED"
	SecondFactorOutageEvent   AuditEventType = "SECOND_FACTOR_UNAVAILABLE"

	// Admin portal events
	AdminLoginEvent           AuditEventType = "ADMIN_LOGIN"
	AdminLoginFailureEvent    AuditEventType = "ADMIN_LOGIN_FAILED"
	AdminLogoutEvent          AuditEventType = "ADMIN_LOGOUT"
	AdminUserCreatedEvent     AuditEventType = "ADMIN_USER_CREATED"
	AdminUserDeactivatedEvent AuditEventType = "ADMIN_USER_DEACTIVATED"
	AdminPasswordResetEvent   AuditEventType = "ADMIN_PASSWORD_RESET"
	AdminAddedEvent           AuditEventType = "ADMIN_ADDED"
	AdminRemovedEvent         AuditEventType = "ADMIN_REMOVED"

	// Content events
	FileRejectedEvent AuditEventType = "FILE_REJECTED"
)

// AuditEvent represents a security-relevant event
type AuditEvent struct {
	ID        string                 `json:"id"`
	EventType AuditEventType         `json:"event_type"`
	UserID    uint                   `json:"user_id,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	ErrorMsg  string                 `json:"error_msg,omitempty"`
	Success   bool                   `json:"success"`
}

// AuditLogger records audit events. Implementations must not fail the caller's
// request because the sink is unavailable.
type AuditLogger interface {
	LogEvent(ctx context.Context, event *AuditEvent)
}

// ClientContext represents client information extracted from an HTTP request
type ClientContext struct {
	IPAddress string
	UserAgent string
}

type clientContextKey struct{}

// WithClientContext attaches client information to ctx
func WithClientContext(ctx context.Context, cc *ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey{}, cc)
}

// ClientContextFrom returns the client information attached to ctx, if any
func ClientContextFrom(ctx context.Context) *ClientContext {
	cc, _ := ctx.Value(clientContextKey{}).(*ClientContext)
	return cc
}

// NewAuditEvent creates a new audit event with common fields populated
func NewAuditEvent(eventType AuditEventType, userID uint) *AuditEvent {
	return &AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]interface{}),
		Success:   true,
	}
}

// WithError sets error information on the audit event
func (e *AuditEvent) WithError(err error) *AuditEvent {
	e.Success = false
	if err != nil {
		e.ErrorMsg = err.Error()
	}
	return e
}

// WithUsername sets the username field
func (e *AuditEvent) WithUsername(username string) *AuditEvent {
	e.Username = username
	return e
}

// WithClientContext sets client context information
func (e *AuditEvent) WithClientContext(ctx *ClientContext) *AuditEvent {
	if ctx != nil {
		e.IPAddress = ctx.IPAddress
		e.UserAgent = ctx.UserAgent
	}
	return e
}

// WithMetadata adds metadata to the event
func (e *AuditEvent) WithMetadata(key string, value interface{}) *AuditEvent {
	e.Metadata[key] = value
	return e
}

package domain

import "time"

// SessionRecord is the server-side state behind a session cookie.
//
// A record is only written back to the store when one of its mutators ran
// (Dirty). Destroy and Rotate are requests honoured when the record is flushed.
type SessionRecord struct {
	Token                 string    `json:"-"`
	CaptchaText           string    `json:"captcha_text,omitempty"`
	PendingStateNonce     string    `json:"pending_state_nonce,omitempty"`
	PendingUserID         uint      `json:"pending_user_id,omitempty"`
	PendingUsername       string    `json:"pending_username,omitempty"`
	PendingExpiresAt      time.Time `json:"pending_expires_at,omitempty"`
	AuthenticatedUserID   uint      `json:"authenticated_user_id,omitempty"`
	AuthenticatedUsername string    `json:"authenticated_username,omitempty"`
	AdminID               uint      `json:"admin_id,omitempty"`
	AdminUsername         string    `json:"admin_username,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`

	dirty     bool
	destroyed bool
	rotate    bool
}

// NewSessionRecord creates an empty record that has not been persisted yet
func NewSessionRecord(now time.Time, ttl time.Duration) *SessionRecord {
	return &SessionRecord{
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// State derives the auth state from the record's fields
func (s *SessionRecord) State(now time.Time) AuthState {
	switch {
	case s.AuthenticatedUserID != 0:
		return StateAuthenticated
	case s.PendingStateNonce != "" && now.Before(s.PendingExpiresAt):
		return StatePendingSecondFactor
	default:
		return StateAnonymous
	}
}

// Expired reports whether the record is past its expiry
func (s *SessionRecord) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Touch extends the rolling expiry
func (s *SessionRecord) Touch(now time.Time, ttl time.Duration) {
	s.ExpiresAt = now.Add(ttl)
	s.dirty = true
}

// SetCaptcha stores the expected CAPTCHA answer
func (s *SessionRecord) SetCaptcha(text string) {
	s.CaptchaText = text
	s.dirty = true
}

// TakeCaptcha returns the expected CAPTCHA answer and forgets it
func (s *SessionRecord) TakeCaptcha() string {
	text := s.CaptchaText
	if text != "" {
		s.CaptchaText = ""
		s.dirty = true
	}
	return text
}

// BeginPending records a second-factor challenge in progress. The deadline is
// capped at the session's own expiry.
func (s *SessionRecord) BeginPending(nonce string, user *UserAccount, deadline time.Time) {
	s.clearIdentity()
	if deadline.After(s.ExpiresAt) {
		deadline = s.ExpiresAt
	}
	s.PendingStateNonce = nonce
	s.PendingUserID = user.ID
	s.PendingUsername = user.Username
	s.PendingExpiresAt = deadline
	s.dirty = true
}

// ClearPending drops any second-factor challenge in progress
func (s *SessionRecord) ClearPending() {
	if s.PendingStateNonce == "" && s.PendingUserID == 0 && s.PendingUsername == "" && s.PendingExpiresAt.IsZero() {
		return
	}
	s.PendingStateNonce = ""
	s.PendingUserID = 0
	s.PendingUsername = ""
	s.PendingExpiresAt = time.Time{}
	s.dirty = true
}

// Authenticate marks the session as fully authenticated and asks for a new token
func (s *SessionRecord) Authenticate(user *UserAccount) {
	s.ClearPending()
	s.AuthenticatedUserID = user.ID
	s.AuthenticatedUsername = user.Username
	s.rotate = true
	s.dirty = true
}

// AdminLogin records an admin login next to whatever user login the session
// holds and asks for a new token
func (s *SessionRecord) AdminLogin(admin *AdminAccount) {
	s.AdminID = admin.ID
	s.AdminUsername = admin.Username
	s.rotate = true
	s.dirty = true
}

// AdminLogout forgets the admin login only
func (s *SessionRecord) AdminLogout() {
	if s.AdminID == 0 && s.AdminUsername == "" {
		return
	}
	s.AdminID = 0
	s.AdminUsername = ""
	s.dirty = true
}

// IsAdmin reports whether the session holds an admin login
func (s *SessionRecord) IsAdmin() bool { return s.AdminID != 0 }

// Reset forgets identity and pending state without destroying the session
func (s *SessionRecord) Reset() {
	s.ClearPending()
	s.clearIdentity()
}

// Destroy clears everything and asks for the token to be invalidated
func (s *SessionRecord) Destroy() {
	*s = SessionRecord{Token: s.Token, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt}
	s.destroyed = true
	s.dirty = true
}

func (s *SessionRecord) clearIdentity() {
	if s.AuthenticatedUserID == 0 && s.AuthenticatedUsername == "" {
		return
	}
	s.AuthenticatedUserID = 0
	s.AuthenticatedUsername = ""
	s.dirty = true
}

// Dirty reports whether the record needs to be written back
func (s *SessionRecord) Dirty() bool { return s.dirty }

// Destroyed reports whether the record was destroyed
func (s *SessionRecord) Destroyed() bool { return s.destroyed }

// RotationRequested reports whether a fresh token should replace the current one
func (s *SessionRecord) RotationRequested() bool { return s.rotate }

// MarkClean is called by the store once the record is persisted
func (s *SessionRecord) MarkClean() {
	s.dirty = false
	s.rotate = false
}

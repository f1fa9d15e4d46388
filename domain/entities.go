package domain

import "time"

// UserAccount represents a registered user
type UserAccount struct {
	ID           uint
	Username     string
	PasswordHash string
	Phone        string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdminAccount is an operator of the admin portal. Admin accounts are kept
// apart from user accounts; the default admin cannot be removed and is the
// only one allowed to manage other admins.
type AdminAccount struct {
	ID           uint
	Username     string
	PasswordHash string
	IsDefault    bool
	CreatedAt    time.Time
}

// AuthState is the position of a session in the login flow. A rejected
// attempt is an error return and leaves the session anonymous.
type AuthState string

const (
	StateAnonymous           AuthState = "anonymous"
	StatePendingSecondFactor AuthState = "pending_second_factor"
	StateAuthenticated       AuthState = "authenticated"
)

// SubjectAdmin is the policy subject granted to a session holding an admin
// login, on top of the subject for its AuthState.
const SubjectAdmin = "admin"

// Identity is the public view of an authenticated user
type Identity struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// LoginResult represents the outcome of a login step. Bypassed is set when
// the outage policy skipped an unreachable second factor.
type LoginResult struct {
	State       AuthState
	User        *UserAccount
	RedirectURL string
	Bypassed    bool
}

// AuthStatus represents what a session currently proves about its holder
type AuthStatus struct {
	State    AuthState
	Identity *Identity
}

// Authenticated reports whether the status is a completed login
func (s *AuthStatus) Authenticated() bool {
	return s.State == StateAuthenticated && s.Identity != nil
}

// Note represents a user note
type Note struct {
	ID        uint
	Title     string
	Content   string
	UserID    uint
	CreatedAt time.Time
}

// StoredFile represents an uploaded file's metadata
type StoredFile struct {
	ID          uint
	Filename    string
	BlobKey     string
	Size        int64
	ContentType string
	UserID      uint
	UploadedAt  time.Time
}

// Severity of a reported vulnerability
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Vulnerability is a single finding returned by the code analyzer
type Vulnerability struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Line        int      `json:"line"`
}

// ScanVerdict is the outcome of an antivirus scan
type ScanVerdict struct {
	Clean   bool
	Threats []string
}

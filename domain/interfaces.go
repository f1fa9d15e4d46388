package domain

import (
	"context"
	"io"
)

// UserRepository defines credential store operations
type UserRepository interface {
	Create(ctx context.Context, user *UserAccount) error
	FindByUsername(ctx context.Context, username string) (*UserAccount, error)
	FindByID(ctx context.Context, id uint) (*UserAccount, error)
	ListActive(ctx context.Context) ([]UserAccount, error)
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	Deactivate(ctx context.Context, id uint) error
}

// AdminRepository defines admin account persistence
type AdminRepository interface {
	Create(ctx context.Context, admin *AdminAccount) error
	FindByUsername(ctx context.Context, username string) (*AdminAccount, error)
	FindByID(ctx context.Context, id uint) (*AdminAccount, error)
	List(ctx context.Context) ([]AdminAccount, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

// SessionStore defines server-side session operations. Put gives a new record
// its token and moves the record to a fresh token when rotation was requested.
type SessionStore interface {
	Get(ctx context.Context, token string) (*SessionRecord, error)
	Put(ctx context.Context, session *SessionRecord) error
	Destroy(ctx context.Context, token string) error
	// DestroyUser drops every session authenticated as userID
	DestroyUser(ctx context.Context, userID uint) error
}

// PasswordService defines password operations
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// SecondFactorBroker delegates the second login step to an external verifier
type SecondFactorBroker interface {
	Name() string
	HealthCheck(ctx context.Context) error
	BeginChallenge(ctx context.Context, user *UserAccount, stateNonce string) (string, error)
	CompleteChallenge(ctx context.Context, code string, user *UserAccount) error
}

// AuthService defines the login state machine
type AuthService interface {
	Register(ctx context.Context, session *SessionRecord, username, password, phone, captcha string) (*UserAccount, error)
	Login(ctx context.Context, session *SessionRecord, username, password string) (*LoginResult, error)
	CompleteSecondFactor(ctx context.Context, session *SessionRecord, state, code string) (*LoginResult, error)
	Logout(ctx context.Context, session *SessionRecord) error
	Status(ctx context.Context, session *SessionRecord) (*AuthStatus, error)
}

// AdminService defines the admin portal: its own login, user management and,
// for the default admin, management of other admins
type AdminService interface {
	EnsureDefault(ctx context.Context, username, password string) (bool, error)
	Login(ctx context.Context, session *SessionRecord, username, password string) (*AdminAccount, error)
	Logout(ctx context.Context, session *SessionRecord) error
	Current(ctx context.Context, session *SessionRecord) (*AdminAccount, error)
	ListAdmins(ctx context.Context) ([]AdminAccount, error)
	AddAdmin(ctx context.Context, session *SessionRecord, username, password string) (*AdminAccount, error)
	RemoveAdmin(ctx context.Context, session *SessionRecord, adminID uint) error
	ListUsers(ctx context.Context) ([]UserAccount, error)
	AddUser(ctx context.Context, session *SessionRecord, username, password string) (*UserAccount, error)
	DeactivateUser(ctx context.Context, session *SessionRecord, userID uint) error
	ResetPassword(ctx context.Context, session *SessionRecord, userID uint, newPassword string) error
}

// CaptchaService defines CAPTCHA challenge operations
type CaptchaService interface {
	Issue(ctx context.Context, session *SessionRecord) (string, error)
	Verify(session *SessionRecord, answer string) bool
}

// OTPService defines one-time code operations keyed by a login challenge
type OTPService interface {
	Generate(ctx context.Context, challengeKey, phone string) error
	Verify(ctx context.Context, challengeKey, code string) (bool, error)
	CanResend(ctx context.Context, phone string) (bool, int64, error)
}

// NotificationService defines notification operations
type NotificationService interface {
	SendSMS(to, message string) error
}

// NoteRepository defines note persistence
type NoteRepository interface {
	Create(ctx context.Context, note *Note) error
	FindByID(ctx context.Context, id uint) (*Note, error)
	ListByUser(ctx context.Context, userID uint) ([]Note, error)
	Search(ctx context.Context, userID uint, query string) ([]Note, error)
	Delete(ctx context.Context, id uint) error
}

// NoteService defines note operations on behalf of a user
type NoteService interface {
	List(ctx context.Context, userID uint) ([]Note, error)
	Create(ctx context.Context, userID uint, title, content string) (*Note, error)
	Search(ctx context.Context, userID uint, query string) ([]Note, error)
	Delete(ctx context.Context, userID, noteID uint) error
}

// FileRepository defines file metadata persistence
type FileRepository interface {
	Create(ctx context.Context, file *StoredFile) error
	FindByID(ctx context.Context, id uint) (*StoredFile, error)
	ListByUser(ctx context.Context, userID uint) ([]StoredFile, error)
	Delete(ctx context.Context, id uint) error
}

// BlobStore stores file contents
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// VirusScanner inspects uploaded content
type VirusScanner interface {
	Scan(ctx context.Context, filename string, r io.Reader) (*ScanVerdict, error)
}

// FileService defines file operations on behalf of a user
type FileService interface {
	List(ctx context.Context, userID uint) ([]StoredFile, error)
	Upload(ctx context.Context, userID uint, filename, contentType string, content []byte) (*StoredFile, error)
	Open(ctx context.Context, userID, fileID uint) (*StoredFile, io.ReadCloser, error)
	Delete(ctx context.Context, userID, fileID uint) error
}

// CodeAnalyzer asks an external model for vulnerabilities in a code snippet
type CodeAnalyzer interface {
	Analyze(ctx context.Context, code string) (string, error)
}

// CodeScanService turns analyzer output into findings
type CodeScanService interface {
	Scan(ctx context.Context, code string) ([]Vulnerability, error)
}

// PolicyService decides which routes a policy subject may reach. Subjects are
// AuthState values and SubjectAdmin.
type PolicyService interface {
	Authorize(subject, path, method string) (bool, error)
}

// CasbinEnforcer is the part of the Casbin enforcer the route guard needs
type CasbinEnforcer interface {
	Enforce(rvals ...interface{}) (bool, error)
}

package mocks

import (
	"context"
	"io"

	"github.com/you/bokohub/domain"
)

// MockAuthService implements domain.AuthService interface for testing
type MockAuthService struct {
	RegisterFunc             func(ctx context.Context, session *domain.SessionRecord, username, password, phone, captcha string) (*domain.UserAccount, error)
	LoginFunc                func(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.LoginResult, error)
	CompleteSecondFactorFunc func(ctx context.Context, session *domain.SessionRecord, state, code string) (*domain.LoginResult, error)
	LogoutFunc               func(ctx context.Context, session *domain.SessionRecord) error
	StatusFunc               func(ctx context.Context, session *domain.SessionRecord) (*domain.AuthStatus, error)
}

// NewMockAuthService creates a new MockAuthService with default behaviors
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func (m *MockAuthService) Register(ctx context.Context, session *domain.SessionRecord, username, password, phone, captcha string) (*domain.UserAccount, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, session, username, password, phone, captcha)
	}
	return &domain.UserAccount{ID: 1, Username: username, Phone: phone, IsActive: true}, nil
}

func (m *MockAuthService) Login(ctx context.Context, session *domain.SessionRecord, username, password string) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, session, username, password)
	}
	return nil, domain.ErrInvalidCredentials
}

func (m *MockAuthService) CompleteSecondFactor(ctx context.Context, session *domain.SessionRecord, state, code string) (*domain.LoginResult, error) {
	if m.CompleteSecondFactorFunc != nil {
		return m.CompleteSecondFactorFunc(ctx, session, state, code)
	}
	return nil, domain.ErrInvalidState
}

func (m *MockAuthService) Logout(ctx context.Context, session *domain.SessionRecord) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, session)
	}
	session.Destroy()
	return nil
}

func (m *MockAuthService) Status(ctx context.Context, session *domain.SessionRecord) (*domain.AuthStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, session)
	}
	return &domain.AuthStatus{State: domain.StateAnonymous}, nil
}

// MockCaptchaService implements domain.CaptchaService interface for testing
type MockCaptchaService struct {
	IssueFunc  func(ctx context.Context, session *domain.SessionRecord) (string, error)
	VerifyFunc func(session *domain.SessionRecord, answer string) bool
}

// NewMockCaptchaService creates a new MockCaptchaService with default behaviors
func NewMockCaptchaService() *MockCaptchaService {
	return &MockCaptchaService{}
}

func (m *MockCaptchaService) Issue(ctx context.Context, session *domain.SessionRecord) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, session)
	}
	session.SetCaptcha("ABCDE")
	return "ABCDE", nil
}

func (m *MockCaptchaService) Verify(session *domain.SessionRecord, answer string) bool {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(session, answer)
	}
	return answer == "ABCDE"
}

// MockNoteService implements domain.NoteService interface for testing
type MockNoteService struct {
	ListFunc   func(ctx context.Context, userID uint) ([]domain.Note, error)
	CreateFunc func(ctx context.Context, userID uint, title, content string) (*domain.Note, error)
	SearchFunc func(ctx context.Context, userID uint, query string) ([]domain.Note, error)
	DeleteFunc func(ctx context.Context, userID, noteID uint) error
}

func (m *MockNoteService) List(ctx context.Context, userID uint) ([]domain.Note, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return []domain.Note{}, nil
}

func (m *MockNoteService) Create(ctx context.Context, userID uint, title, content string) (*domain.Note, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, title, content)
	}
	return &domain.Note{ID: 1, Title: title, Content: content, UserID: userID}, nil
}

func (m *MockNoteService) Search(ctx context.Context, userID uint, query string) ([]domain.Note, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, userID, query)
	}
	return []domain.Note{}, nil
}

func (m *MockNoteService) Delete(ctx context.Context, userID, noteID uint) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, noteID)
	}
	return nil
}

// MockFileService implements domain.FileService interface for testing
type MockFileService struct {
	ListFunc   func(ctx context.Context, userID uint) ([]domain.StoredFile, error)
	UploadFunc func(ctx context.Context, userID uint, filename, contentType string, content []byte) (*domain.StoredFile, error)
	OpenFunc   func(ctx context.Context, userID, fileID uint) (*domain.StoredFile, io.ReadCloser, error)
	DeleteFunc func(ctx context.Context, userID, fileID uint) error
}

func (m *MockFileService) List(ctx context.Context, userID uint) ([]domain.StoredFile, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return []domain.StoredFile{}, nil
}

func (m *MockFileService) Upload(ctx context.Context, userID uint, filename, contentType string, content []byte) (*domain.StoredFile, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, userID, filename, contentType, content)
	}
	return &domain.StoredFile{ID: 1, Filename: filename, Size: int64(len(content)), ContentType: contentType, UserID: userID}, nil
}

func (m *MockFileService) Open(ctx context.Context, userID, fileID uint) (*domain.StoredFile, io.ReadCloser, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, userID, fileID)
	}
	return nil, nil, domain.ErrNotFound
}

func (m *MockFileService) Delete(ctx context.Context, userID, fileID uint) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, fileID)
	}
	return nil
}

// MockCodeScanService implements domain.CodeScanService interface for testing
type MockCodeScanService struct {
	ScanFunc func(ctx context.Context, code string) ([]domain.Vulnerability, error)
}

func (m *MockCodeScanService) Scan(ctx context.Context, code string) ([]domain.Vulnerability, error) {
	if m.ScanFunc != nil {
		return m.ScanFunc(ctx, code)
	}
	return []domain.Vulnerability{}, nil
}

// Compile-time interface compliance verification
var (
	_ domain.AuthService     = (*MockAuthService)(nil)
	_ domain.CaptchaService  = (*MockCaptchaService)(nil)
	_ domain.NoteService     = (*MockNoteService)(nil)
	_ domain.FileService     = (*MockFileService)(nil)
	_ domain.CodeScanService = (*MockCodeScanService)(nil)
)

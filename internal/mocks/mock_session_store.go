package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/you/bokohub/domain"
)

// MockSessionStore implements domain.SessionStore interface for testing.
// Without overrides it keeps records in memory and hands out sequential tokens.
type MockSessionStore struct {
	GetFunc     func(ctx context.Context, token string) (*domain.SessionRecord, error)
	PutFunc     func(ctx context.Context, session *domain.SessionRecord) error
	DestroyFunc func(ctx context.Context, token string) error
	// DestroyUserFunc defaults to dropping every stored record authenticated as the user
	DestroyUserFunc func(ctx context.Context, userID uint) error

	mu      sync.Mutex
	records map[string]domain.SessionRecord
	seq     int
	Puts    int
}

// NewMockSessionStore creates a new MockSessionStore with in-memory defaults
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{records: make(map[string]domain.SessionRecord)}
}

// Seed stores an empty one-hour session and returns it
func (m *MockSessionStore) Seed() *domain.SessionRecord {
	session := domain.NewSessionRecord(time.Now(), time.Hour)
	_ = m.Put(context.Background(), session)
	return session
}

// Get returns a copy of the stored session
func (m *MockSessionStore) Get(ctx context.Context, token string) (*domain.SessionRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	record.Token = token
	return &record, nil
}

// Put stores the session, assigning a token when it has none
func (m *MockSessionStore) Put(ctx context.Context, session *domain.SessionRecord) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	if session.RotationRequested() {
		delete(m.records, session.Token)
		session.Token = ""
	}
	if session.Token == "" {
		m.seq++
		session.Token = fmt.Sprintf("mock-session-%d", m.seq)
	}
	session.MarkClean()
	m.records[session.Token] = *session
	return nil
}

// Destroy removes the session
func (m *MockSessionStore) Destroy(ctx context.Context, token string) error {
	if m.DestroyFunc != nil {
		return m.DestroyFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, token)
	return nil
}

// DestroyUser removes every session authenticated as userID
func (m *MockSessionStore) DestroyUser(ctx context.Context, userID uint) error {
	if m.DestroyUserFunc != nil {
		return m.DestroyUserFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, record := range m.records {
		if record.AuthenticatedUserID == userID {
			delete(m.records, token)
		}
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.SessionStore = (*MockSessionStore)(nil)

package mocks

import (
	"context"
	"sync"

	"github.com/you/bokohub/domain"
)

// MockAuditLogger records audit events for assertions
type MockAuditLogger struct {
	mu     sync.Mutex
	Events []*domain.AuditEvent
}

// NewMockAuditLogger creates a new MockAuditLogger
func NewMockAuditLogger() *MockAuditLogger {
	return &MockAuditLogger{}
}

// LogEvent records the event
func (m *MockAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Find returns the recorded events of the given type
func (m *MockAuditLogger) Find(eventType domain.AuditEventType) []*domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []*domain.AuditEvent
	for _, e := range m.Events {
		if e.EventType == eventType {
			found = append(found, e)
		}
	}
	return found
}

// Compile-time interface compliance verification
var _ domain.AuditLogger = (*MockAuditLogger)(nil)

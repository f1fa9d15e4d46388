package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/you/bokohub/domain"
)

// MockBlobStore implements domain.BlobStore interface in memory
type MockBlobStore struct {
	PutFunc func(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	mu    sync.Mutex
	Blobs map[string][]byte
}

// NewMockBlobStore creates an empty in-memory blob store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{Blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, r, size, contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blobs[key] = data
	return nil
}

func (m *MockBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Blobs, key)
	return nil
}

// MockVirusScanner implements domain.VirusScanner interface for testing
type MockVirusScanner struct {
	ScanFunc func(ctx context.Context, filename string, r io.Reader) (*domain.ScanVerdict, error)
}

func (m *MockVirusScanner) Scan(ctx context.Context, filename string, r io.Reader) (*domain.ScanVerdict, error) {
	if m.ScanFunc != nil {
		return m.ScanFunc(ctx, filename, r)
	}
	return &domain.ScanVerdict{Clean: true}, nil
}

// MockCodeAnalyzer implements domain.CodeAnalyzer interface for testing
type MockCodeAnalyzer struct {
	AnalyzeFunc func(ctx context.Context, code string) (string, error)
}

func (m *MockCodeAnalyzer) Analyze(ctx context.Context, code string) (string, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, code)
	}
	return "[]", nil
}

// Compile-time interface compliance verification
var (
	_ domain.BlobStore    = (*MockBlobStore)(nil)
	_ domain.VirusScanner = (*MockVirusScanner)(nil)
	_ domain.CodeAnalyzer = (*MockCodeAnalyzer)(nil)
)

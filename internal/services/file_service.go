package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// FileConfig holds upload limits
type FileConfig struct {
	AllowedExtensions []string
	MaxSize           int64
}

// DefaultAllowedExtensions are accepted when none are configured
var DefaultAllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "gif"}

// FileServiceImpl implements domain.FileService. Content is scanned before
// anything is stored.
type FileServiceImpl struct {
	files   domain.FileRepository
	blobs   domain.BlobStore
	scanner domain.VirusScanner
	audit   domain.AuditLogger
	logger  *zap.Logger
	allowed map[string]bool
	maxSize int64
	now     func() time.Time
}

// NewFileService creates a new file service
func NewFileService(files domain.FileRepository, blobs domain.BlobStore, scanner domain.VirusScanner, audit domain.AuditLogger, logger *zap.Logger, config FileConfig) *FileServiceImpl {
	exts := config.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 16 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileServiceImpl{
		files:   files,
		blobs:   blobs,
		scanner: scanner,
		audit:   audit,
		logger:  logger,
		allowed: allowed,
		maxSize: config.MaxSize,
		now:     time.Now,
	}
}

// List implements domain.FileService
func (s *FileServiceImpl) List(ctx context.Context, userID uint) ([]domain.StoredFile, error) {
	return s.files.ListByUser(ctx, userID)
}

// Upload implements domain.FileService
func (s *FileServiceImpl) Upload(ctx context.Context, userID uint, filename, contentType string, content []byte) (*domain.StoredFile, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: empty filename", domain.ErrFileRejected)
	}
	if !s.allowed[extension(name)] {
		return nil, domain.ErrFileRejected
	}
	if int64(len(content)) > s.maxSize {
		return nil, fmt.Errorf("%w: larger than %d bytes", domain.ErrFileRejected, s.maxSize)
	}

	verdict, err := s.scanner.Scan(ctx, name, bytes.NewReader(content))
	if err != nil {
		s.logger.Error("virus scan failed", zap.String("filename", name), zap.Error(err))
		if errors.Is(err, domain.ErrScannerUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrScannerUnavailable, err)
	}
	if !verdict.Clean {
		if s.audit != nil {
			s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.FileRejectedEvent, userID).
				WithClientContext(domain.ClientContextFrom(ctx)).
				WithMetadata("filename", name).
				WithMetadata("threats", verdict.Threats).
				WithError(domain.ErrMalwareDetected))
		}
		return nil, domain.ErrMalwareDetected
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(content)
	}

	now := s.now().UTC()
	file := &domain.StoredFile{
		Filename:    name,
		BlobKey:     fmt.Sprintf("users/%d/%s/%s", userID, now.Format("2006/01/02"), uuid.NewString()),
		Size:        int64(len(content)),
		ContentType: contentType,
		UserID:      userID,
	}

	if err := s.blobs.Put(ctx, file.BlobKey, bytes.NewReader(content), file.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.blobs.Delete(ctx, file.BlobKey); delErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("key", file.BlobKey), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}
	return file, nil
}

// Open returns the metadata and content of a file owned by userID
func (s *FileServiceImpl) Open(ctx context.Context, userID, fileID uint) (*domain.StoredFile, io.ReadCloser, error) {
	file, err := s.owned(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	return file, body, nil
}

// Delete implements domain.FileService
func (s *FileServiceImpl) Delete(ctx context.Context, userID, fileID uint) error {
	file, err := s.owned(ctx, userID, fileID)
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, fileID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, file.BlobKey); err != nil {
		s.logger.Warn("failed to delete blob", zap.String("key", file.BlobKey), zap.Error(err))
	}
	return nil
}

func (s *FileServiceImpl) owned(ctx context.Context, userID, fileID uint) (*domain.StoredFile, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return file, nil
}

// SanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] with an underscore
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

var _ domain.FileService = (*FileServiceImpl)(nil)

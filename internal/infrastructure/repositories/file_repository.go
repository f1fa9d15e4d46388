package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/you/bokohub/domain"
)

// FileRepositoryImpl implements domain.FileRepository using GORM
type FileRepositoryImpl struct {
	db *gorm.DB
}

// DBFile represents the database model for StoredFile
type DBFile struct {
	ID          uint      `gorm:"primaryKey"`
	Filename    string    `gorm:"size:255;not null"`
	BlobKey     string    `gorm:"uniqueIndex;size:255;not null"`
	Size        int64     `gorm:"not null"`
	ContentType string    `gorm:"size:127"`
	UserID      uint      `gorm:"index;not null"`
	UploadedAt  time.Time `gorm:"index;autoCreateTime"`
	User        DBUser    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (DBFile) TableName() string {
	return "files"
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *gorm.DB) domain.FileRepository {
	return &FileRepositoryImpl{db: db}
}

// Create implements domain.FileRepository
func (r *FileRepositoryImpl) Create(ctx context.Context, file *domain.StoredFile) error {
	dbFile := &DBFile{
		Filename:    file.Filename,
		BlobKey:     file.BlobKey,
		Size:        file.Size,
		ContentType: file.ContentType,
		UserID:      file.UserID,
		UploadedAt:  file.UploadedAt,
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(dbFile).Error; err != nil {
		return err
	}
	file.ID = dbFile.ID
	file.UploadedAt = dbFile.UploadedAt
	return nil
}

// FindByID implements domain.FileRepository
func (r *FileRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.StoredFile, error) {
	var dbFile DBFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbFile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	file := fileToDomain(&dbFile)
	return &file, nil
}

// ListByUser implements domain.FileRepository
func (r *FileRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]domain.StoredFile, error) {
	var rows []DBFile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	files := make([]domain.StoredFile, 0, len(rows))
	for i := range rows {
		files = append(files, fileToDomain(&rows[i]))
	}
	return files, nil
}

// Delete implements domain.FileRepository
func (r *FileRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&DBFile{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func fileToDomain(f *DBFile) domain.StoredFile {
	return domain.StoredFile{
		ID:          f.ID,
		Filename:    f.Filename,
		BlobKey:     f.BlobKey,
		Size:        f.Size,
		ContentType: f.ContentType,
		UserID:      f.UserID,
		UploadedAt:  f.UploadedAt,
	}
}

package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/you/bokohub/domain"
)

// AdminRepositoryImpl implements domain.AdminRepository using GORM
type AdminRepositoryImpl struct {
	db *gorm.DB
}

// DBAdmin is the admin portal account row
type DBAdmin struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string `gorm:"column:password_hash;size:200;not null"`
	IsDefault    bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM
func (DBAdmin) TableName() string {
	return "admin_credentials"
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *gorm.DB) domain.AdminRepository {
	return &AdminRepositoryImpl{db: db}
}

// Create implements domain.AdminRepository
func (r *AdminRepositoryImpl) Create(ctx context.Context, admin *domain.AdminAccount) error {
	row := &DBAdmin{
		Username:     admin.Username,
		PasswordHash: admin.PasswordHash,
		IsDefault:    admin.IsDefault,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DBAdmin{}).Where("username = ?", admin.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAdminAlreadyExists
		}
		return tx.Create(row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return domain.ErrAdminAlreadyExists
		}
		return err
	}
	admin.ID = row.ID
	admin.CreatedAt = row.CreatedAt
	return nil
}

// FindByUsername implements domain.AdminRepository
func (r *AdminRepositoryImpl) FindByUsername(ctx context.Context, username string) (*domain.AdminAccount, error) {
	return r.first(ctx, "username = ?", username)
}

// FindByID implements domain.AdminRepository
func (r *AdminRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.AdminAccount, error) {
	return r.first(ctx, "id = ?", id)
}

// List implements domain.AdminRepository. The default admin comes first.
func (r *AdminRepositoryImpl) List(ctx context.Context) ([]domain.AdminAccount, error) {
	var rows []DBAdmin
	if err := r.db.WithContext(ctx).Order("is_default DESC, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	admins := make([]domain.AdminAccount, 0, len(rows))
	for i := range rows {
		admins = append(admins, *adminToDomain(&rows[i]))
	}
	return admins, nil
}

// Delete implements domain.AdminRepository. The default admin row is never
// deleted, whatever the caller checked before.
func (r *AdminRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND is_default = ?", id, false).Delete(&DBAdmin{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrDefaultAdminProtected
	}
	return nil
}

// Count implements domain.AdminRepository
func (r *AdminRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&DBAdmin{}).Count(&count).Error
	return count, err
}

func (r *AdminRepositoryImpl) first(ctx context.Context, query string, arg interface{}) (*domain.AdminAccount, error) {
	var row DBAdmin
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, err
	}
	return adminToDomain(&row), nil
}

func adminToDomain(row *DBAdmin) *domain.AdminAccount {
	return &domain.AdminAccount{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		IsDefault:    row.IsDefault,
		CreatedAt:    row.CreatedAt,
	}
}

package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/you/bokohub/domain"
)

// UserRepositoryImpl implements domain.UserRepository using GORM
type UserRepositoryImpl struct {
	db *gorm.DB
}

// DBUser represents the database model for UserAccount (with GORM tags)
type DBUser struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string    `gorm:"column:password_hash;size:200;not null"`
	Phone        string    `gorm:"size:32"`
	IsActive     bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (DBUser) TableName() string {
	return "users"
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &UserRepositoryImpl{db: db}
}

// Create implements domain.UserRepository
func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.UserAccount) error {
	dbUser := r.domainToDB(user)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&DBUser{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrUserAlreadyExists
		}
		return tx.Create(dbUser).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return err
	}
	user.ID = dbUser.ID
	user.CreatedAt = dbUser.CreatedAt
	user.UpdatedAt = dbUser.UpdatedAt
	return nil
}

// FindByUsername implements domain.UserRepository
func (r *UserRepositoryImpl) FindByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var dbUser DBUser
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&dbUser).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&dbUser), nil
}

// FindByID implements domain.UserRepository
func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.UserAccount, error) {
	var dbUser DBUser
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbUser).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return r.dbToDomain(&dbUser), nil
}

// ListActive implements domain.UserRepository
func (r *UserRepositoryImpl) ListActive(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []DBUser
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(rows))
	for i := range rows {
		users = append(users, *r.dbToDomain(&rows[i]))
	}
	return users, nil
}

// UpdatePassword implements domain.UserRepository
func (r *UserRepositoryImpl) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&DBUser{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Deactivate implements domain.UserRepository
func (r *UserRepositoryImpl) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&DBUser{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// domainToDB converts domain user to database user
func (r *UserRepositoryImpl) domainToDB(user *domain.UserAccount) *DBUser {
	return &DBUser{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Phone:        user.Phone,
		IsActive:     user.IsActive,
	}
}

// dbToDomain converts database user to domain user
func (r *UserRepositoryImpl) dbToDomain(dbUser *DBUser) *domain.UserAccount {
	return &domain.UserAccount{
		ID:           dbUser.ID,
		Username:     dbUser.Username,
		PasswordHash: dbUser.PasswordHash,
		Phone:        dbUser.Phone,
		IsActive:     dbUser.IsActive,
		CreatedAt:    dbUser.CreatedAt,
		UpdatedAt:    dbUser.UpdatedAt,
	}
}

// isUniqueViolation catches drivers that don't translate errors into gorm.ErrDuplicatedKey
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

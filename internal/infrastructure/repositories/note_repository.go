package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/you/bokohub/domain"
)

// NoteRepositoryImpl implements domain.NoteRepository using GORM
type NoteRepositoryImpl struct {
	db *gorm.DB
}

// DBNote represents the database model for Note
type DBNote struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"size:100;not null"`
	Content   string    `gorm:"type:text;not null"`
	UserID    uint      `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"index"`
	User      DBUser    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (DBNote) TableName() string {
	return "notes"
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *gorm.DB) domain.NoteRepository {
	return &NoteRepositoryImpl{db: db}
}

// Create implements domain.NoteRepository
func (r *NoteRepositoryImpl) Create(ctx context.Context, note *domain.Note) error {
	dbNote := &DBNote{
		Title:     note.Title,
		Content:   note.Content,
		UserID:    note.UserID,
		CreatedAt: note.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(dbNote).Error; err != nil {
		return err
	}
	note.ID = dbNote.ID
	note.CreatedAt = dbNote.CreatedAt
	return nil
}

// FindByID implements domain.NoteRepository
func (r *NoteRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.Note, error) {
	var dbNote DBNote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dbNote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	note := noteToDomain(&dbNote)
	return &note, nil
}

// ListByUser implements domain.NoteRepository
func (r *NoteRepositoryImpl) ListByUser(ctx context.Context, userID uint) ([]domain.Note, error) {
	var rows []DBNote
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return notesToDomain(rows), nil
}

// Search implements domain.NoteRepository. Matching is case-insensitive on
// title or content and never crosses user boundaries.
func (r *NoteRepositoryImpl) Search(ctx context.Context, userID uint, query string) ([]domain.Note, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var rows []DBNote
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\')", pattern, pattern).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return notesToDomain(rows), nil
}

// Delete implements domain.NoteRepository
func (r *NoteRepositoryImpl) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&DBNote{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func noteToDomain(n *DBNote) domain.Note {
	return domain.Note{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		UserID:    n.UserID,
		CreatedAt: n.CreatedAt,
	}
}

func notesToDomain(rows []DBNote) []domain.Note {
	notes := make([]domain.Note, 0, len(rows))
	for i := range rows {
		notes = append(notes, noteToDomain(&rows[i]))
	}
	return notes
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

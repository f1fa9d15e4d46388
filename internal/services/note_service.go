package services

import (
	"context"
	"strings"

	"github.com/you/bokohub/domain"
)

// NoteServiceImpl implements domain.NoteService
type NoteServiceImpl struct {
	notes domain.NoteRepository
}

// NewNoteService creates a new note service
func NewNoteService(notes domain.NoteRepository) *NoteServiceImpl {
	return &NoteServiceImpl{notes: notes}
}

// List returns the user's notes, newest first
func (s *NoteServiceImpl) List(ctx context.Context, userID uint) ([]domain.Note, error) {
	return s.notes.ListByUser(ctx, userID)
}

// Create implements domain.NoteService
func (s *NoteServiceImpl) Create(ctx context.Context, userID uint, title, content string) (*domain.Note, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return nil, domain.ErrInvalidNote
	}
	note := &domain.Note{Title: title, Content: content, UserID: userID}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Search matches title or content, case-insensitively, within the user's notes
func (s *NoteServiceImpl) Search(ctx context.Context, userID uint, query string) ([]domain.Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.notes.ListByUser(ctx, userID)
	}
	return s.notes.Search(ctx, userID, query)
}

// Delete removes a note owned by userID
func (s *NoteServiceImpl) Delete(ctx context.Context, userID, noteID uint) error {
	note, err := s.notes.FindByID(ctx, noteID)
	if err != nil {
		return err
	}
	if note.UserID != userID {
		return domain.ErrForbidden
	}
	return s.notes.Delete(ctx, noteID)
}

var _ domain.NoteService = (*NoteServiceImpl)(nil)

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/infrastructure/database"
	"github.com/you/bokohub/internal/infrastructure/repositories"
)

func createNoteServiceForTest(t *testing.T) (*NoteServiceImpl, uint, uint) {
	t.Helper()

	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	users := repositories.NewUserRepository(db)
	alice := &domain.UserAccount{Username: "alice", PasswordHash: "x", IsActive: true}
	bob := &domain.UserAccount{Username: "bob", PasswordHash: "x", IsActive: true}
	require.NoError(t, users.Create(context.Background(), alice))
	require.NoError(t, users.Create(context.Background(), bob))

	return NewNoteService(repositories.NewNoteRepository(db)), alice.ID, bob.ID
}

func TestNoteServiceImpl_Create(t *testing.T) {
	tests := []struct {
		name          string
		title         string
		content       string
		expectedError error
	}{
		{name: "valid note", title: "todo", content: "buy milk"},
		{name: "missing title", title: "", content: "buy milk", expectedError: domain.ErrInvalidNote},
		{name: "blank content", title: "todo", content: "   ", expectedError: domain.ErrInvalidNote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, alice, _ := createNoteServiceForTest(t)

			note, err := svc.Create(context.Background(), alice, tt.title, tt.content)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, note.ID)
			assert.Equal(t, alice, note.UserID)
		})
	}
}

func TestNoteServiceImpl_ListAndSearchAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := createNoteServiceForTest(t)

	_, err := svc.Create(ctx, alice, "Groceries", "milk and eggs")
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, "Work", "quarterly REPORT")
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, "Report", "bob's report")
	require.NoError(t, err)

	notes, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Work", notes[0].Title)

	found, err := svc.Search(ctx, alice, "report")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Work", found[0].Title)

	all, err := svc.Search(ctx, alice, "  ")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNoteServiceImpl_Delete(t *testing.T) {
	ctx := context.Background()
	svc, alice, bob := createNoteServiceForTest(t)
	note, err := svc.Create(ctx, alice, "mine", "secret")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob, note.ID), domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, alice, note.ID+100), domain.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, alice, note.ID))

	notes, err := svc.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

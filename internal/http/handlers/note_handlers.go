package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// NoteHandlers serves the authenticated user's notes
type NoteHandlers struct {
	noteSvc domain.NoteService
	logger  *zap.Logger
}

// NewNoteHandlers creates new note handlers
func NewNoteHandlers(noteSvc domain.NoteService, logger *zap.Logger) *NoteHandlers {
	return &NoteHandlers{noteSvc: noteSvc, logger: logger}
}

// CreateNoteRequest represents a new note
type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func noteJSON(n domain.Note) gin.H {
	return gin.H{
		"id":         n.ID,
		"title":      n.Title,
		"content":    n.Content,
		"created_at": n.CreatedAt.Format(timeLayout),
		"user_id":    n.UserID,
	}
}

func notesJSON(notes []domain.Note) []gin.H {
	out := make([]gin.H, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteJSON(n))
	}
	return out
}

// List returns the user's notes, newest first
func (h *NoteHandlers) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notes, err := h.noteSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list notes failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get notes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notes": notesJSON(notes)})
}

// Create stores a new note
func (h *NoteHandlers) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	note, err := h.noteSvc.Create(c.Request.Context(), userID, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidNote) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Title and content are required"})
			return
		}
		h.logger.Error("create note failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create note"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Note created successfully", "note": noteJSON(*note)})
}

// Search matches the query against the user's notes
func (h *NoteHandlers) Search(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notes, err := h.noteSvc.Search(c.Request.Context(), userID, c.Query("q"))
	if err != nil {
		h.logger.Error("search notes failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to search notes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notes": notesJSON(notes)})
}

// Delete removes one of the user's notes
func (h *NoteHandlers) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid note id"})
		return
	}

	if err := h.noteSvc.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Note not found"})
		case errors.Is(err, domain.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Unauthorized"})
		default:
			h.logger.Error("delete note failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete note"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

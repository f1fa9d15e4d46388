package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// FileHandlers serves uploads and downloads for the authenticated user
type FileHandlers struct {
	fileSvc domain.FileService
	logger  *zap.Logger
	maxSize int64
}

// NewFileHandlers creates new file handlers. Request bodies larger than
// maxSize are refused before they reach the service.
func NewFileHandlers(fileSvc domain.FileService, logger *zap.Logger, maxSize int64) *FileHandlers {
	if maxSize <= 0 {
		maxSize = 16 << 20
	}
	return &FileHandlers{fileSvc: fileSvc, logger: logger, maxSize: maxSize}
}

func fileJSON(f domain.StoredFile) gin.H {
	return gin.H{
		"id":           f.ID,
		"filename":     f.Filename,
		"size":         f.Size,
		"content_type": f.ContentType,
		"uploaded_at":  f.UploadedAt.Format(timeLayout),
	}
}

// List returns the user's files
func (h *FileHandlers) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	files, err := h.fileSvc.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list files failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get files"})
		return
	}
	out := make([]gin.H, 0, len(files))
	for _, f := range files {
		out = append(out, fileJSON(f))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": out})
}

// Upload scans and stores the multipart field "file"
func (h *FileHandlers) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	// Multipart framing adds a little on top of the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file part"})
		return
	}
	if header.Size > h.maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "File too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read file"})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read file"})
		return
	}

	stored, err := h.fileSvc.Upload(c.Request.Context(), userID, header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrFileRejected):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "File type not allowed"})
		case errors.Is(err, domain.ErrMalwareDetected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": "Malicious file detected!"})
		case errors.Is(err, domain.ErrScannerUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Virus scanning is unavailable, please try again later"})
		default:
			h.logger.Error("upload failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to upload file"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "File uploaded successfully!", "file": fileJSON(*stored)})
}

// Download streams one of the user's files as an attachment
func (h *FileHandlers) Download(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid file id"})
		return
	}

	file, body, err := h.fileSvc.Open(c.Request.Context(), userID, uint(id))
	if err != nil {
		h.writeLookupError(c, userID, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, body, map[string]string{
		"Content-Disposition":    fmt.Sprintf("attachment; filename=%q", file.Filename),
		"X-Content-Type-Options": "nosniff",
	})
}

// Delete removes one of the user's files
func (h *FileHandlers) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid file id"})
		return
	}

	if err := h.fileSvc.Delete(c.Request.Context(), userID, uint(id)); err != nil {
		h.writeLookupError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *FileHandlers) writeLookupError(c *gin.Context, userID uint, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Unauthorized"})
	default:
		h.logger.Error("file access failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "File access failed"})
	}
}

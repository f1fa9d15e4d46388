package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/http/middleware"
)

// writeAuthError maps login flow errors to responses. Every rejection looks
// the same to the client; the cause is only in the audit log.
func writeAuthError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing credentials"})
	case errors.Is(err, domain.ErrBrokerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "Second factor service unavailable"})
	case errors.Is(err, domain.ErrOTPResendLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "message": "Please wait before requesting another code"})
	case domain.IsAuthFailure(err):
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid credentials"})
	default:
		logger.Error("login flow failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Server error"})
	}
}

// currentUserID returns the authenticated user behind the session or writes a 401
func currentUserID(c *gin.Context) (uint, bool) {
	session := middleware.CurrentSession(c)
	if session == nil || session.AuthenticatedUserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authentication required"})
		return 0, false
	}
	return session.AuthenticatedUserID, true
}

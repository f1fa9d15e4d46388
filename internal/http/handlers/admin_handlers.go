package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/http/middleware"
)

// AdminHandlers serves the admin portal
type AdminHandlers struct {
	adminSvc domain.AdminService
	logger   *zap.Logger
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(adminSvc domain.AdminService, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{adminSvc: adminSvc, logger: logger}
}

// AdminCredentialsRequest carries a username and password for admin login and
// for adding users or admins
type AdminCredentialsRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// ResetPasswordRequest represents a password reset by an admin
type ResetPasswordRequest struct {
	UserID      uint   `form:"user_id" json:"user_id"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// adminTuples renders admins as [id, username, is_default] rows, the shape the
// portal reads
func adminTuples(admins []domain.AdminAccount) [][]interface{} {
	out := make([][]interface{}, 0, len(admins))
	for _, a := range admins {
		out = append(out, []interface{}{a.ID, a.Username, a.IsDefault})
	}
	return out
}

// Check reports whether the session holds an admin login
func (h *AdminHandlers) Check(c *gin.Context) {
	admin, err := h.adminSvc.Current(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		h.logger.Error("admin check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"logged_in": false, "message": "Server error"})
		return
	}
	if admin == nil {
		c.JSON(http.StatusOK, gin.H{"logged_in": false})
		return
	}

	admins, ok := h.listAdmins(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logged_in":        true,
		"admin_username":   admin.Username,
		"is_default_admin": admin.IsDefault,
		"admins":           admins,
	})
}

// Login starts an admin login on the current session
func (h *AdminHandlers) Login(c *gin.Context) {
	var req AdminCredentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	admin, err := h.adminSvc.Login(c.Request.Context(), middleware.CurrentSession(c), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err, "admin login failed")
		return
	}

	admins, ok := h.listAdmins(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Login successful",
		"is_default_admin": admin.IsDefault,
		"admins":           admins,
	})
}

// Logout ends the admin login and keeps any user login
func (h *AdminHandlers) Logout(c *gin.Context) {
	if err := h.adminSvc.Logout(c.Request.Context(), middleware.CurrentSession(c)); err != nil {
		h.writeError(c, err, "admin logout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Users lists the active user accounts
func (h *AdminHandlers) Users(c *gin.Context) {
	admin, err := h.adminSvc.Current(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil || admin == nil {
		if err == nil {
			err = domain.ErrForbidden
		}
		h.writeError(c, err, "list users failed")
		return
	}

	users, err := h.adminSvc.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "list users failed")
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON(u.ID, u.Username))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": out})
}

// AddUser creates an active user account
func (h *AdminHandlers) AddUser(c *gin.Context) {
	var req AdminCredentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	user, err := h.adminSvc.AddUser(c.Request.Context(), middleware.CurrentSession(c), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err, "add user failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User " + user.Username + " added successfully",
		"user":    userJSON(user.ID, user.Username),
	})
}

// DeleteUser deactivates a user account and revokes its sessions
func (h *AdminHandlers) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid user id"})
		return
	}

	if err := h.adminSvc.DeactivateUser(c.Request.Context(), middleware.CurrentSession(c), uint(id)); err != nil {
		h.writeError(c, err, "delete user failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted successfully"})
}

// ResetPassword sets a new password for a user
func (h *AdminHandlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	if err := h.adminSvc.ResetPassword(c.Request.Context(), middleware.CurrentSession(c), req.UserID, req.NewPassword); err != nil {
		h.writeError(c, err, "password reset failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset successfully"})
}

// AddAdmin creates another admin. Only the default admin may call it.
func (h *AdminHandlers) AddAdmin(c *gin.Context) {
	var req AdminCredentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	admin, err := h.adminSvc.AddAdmin(c.Request.Context(), middleware.CurrentSession(c), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err, "add admin failed")
		return
	}

	admins, ok := h.listAdmins(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Admin " + admin.Username + " added successfully",
		"admins":  admins,
	})
}

// RemoveAdmin deletes a non-default admin. Only the default admin may call it.
func (h *AdminHandlers) RemoveAdmin(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid admin id"})
		return
	}

	if err := h.adminSvc.RemoveAdmin(c.Request.Context(), middleware.CurrentSession(c), uint(id)); err != nil {
		h.writeError(c, err, "remove admin failed")
		return
	}

	admins, ok := h.listAdmins(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Admin removed successfully",
		"admins":  admins,
	})
}

func (h *AdminHandlers) listAdmins(c *gin.Context) ([][]interface{}, bool) {
	admins, err := h.adminSvc.ListAdmins(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "list admins failed")
		return nil, false
	}
	return adminTuples(admins), true
}

func (h *AdminHandlers) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Admin login required"})
	case errors.Is(err, domain.ErrNotDefaultAdmin):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Only the default admin can manage admins"})
	case errors.Is(err, domain.ErrDefaultAdminProtected):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "The default admin cannot be removed"})
	case errors.Is(err, domain.ErrUserAlreadyExists), errors.Is(err, domain.ErrAdminAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Username already exists"})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
	case errors.Is(err, domain.ErrAdminNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Admin not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
	}
}

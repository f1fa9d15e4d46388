package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/http/middleware"
)

// AuthHandlers handles the login flow over the session cookie
type AuthHandlers struct {
	authSvc     domain.AuthService
	captchaSvc  domain.CaptchaService
	logger      *zap.Logger
	echoCaptcha bool
}

// NewAuthHandlers creates new auth handlers. echoCaptcha returns the CAPTCHA
// text in the response and is only meant for development.
func NewAuthHandlers(authSvc domain.AuthService, captchaSvc domain.CaptchaService, logger *zap.Logger, echoCaptcha bool) *AuthHandlers {
	return &AuthHandlers{
		authSvc:     authSvc,
		captchaSvc:  captchaSvc,
		logger:      logger,
		echoCaptcha: echoCaptcha,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Captcha  string `form:"captcha" json:"captcha"`
	Phone    string `form:"phone" json:"phone"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func userJSON(id uint, username string) gin.H {
	return gin.H{"id": id, "username": username}
}

// Captcha issues a new CAPTCHA challenge into the session
func (h *AuthHandlers) Captcha(c *gin.Context) {
	text, err := h.captchaSvc.Issue(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		h.logger.Error("captcha generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to generate CAPTCHA"})
		return
	}

	resp := gin.H{"success": true}
	if h.echoCaptcha {
		resp["captcha"] = text
	}
	c.JSON(http.StatusOK, resp)
}

// Register handles user registration
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	_, err := h.authSvc.Register(c.Request.Context(), middleware.CurrentSession(c), req.Username, req.Password, req.Phone, req.Captcha)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCaptcha):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid CAPTCHA. Please try again."})
		case errors.Is(err, domain.ErrMissingCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username and password are required"})
		case errors.Is(err, domain.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Username already exists. Please choose a different one."})
		default:
			h.logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "An error occurred during registration. Please try again."})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Registration successful! You can now log in."})
}

// Login handles the first factor
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Missing credentials"})
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), middleware.CurrentSession(c), req.Username, req.Password)
	if err != nil {
		writeAuthError(c, h.logger, err)
		return
	}
	h.writeLoginResult(c, result)
}

// SecondFactorCallback completes a pending second factor. Duo sends the code as
// duo_code.
func (h *AuthHandlers) SecondFactorCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" {
		code = c.Query("duo_code")
	}

	result, err := h.authSvc.CompleteSecondFactor(c.Request.Context(), middleware.CurrentSession(c), state, code)
	if err != nil {
		writeAuthError(c, h.logger, err)
		return
	}
	h.writeLoginResult(c, result)
}

func (h *AuthHandlers) writeLoginResult(c *gin.Context, result *domain.LoginResult) {
	switch result.State {
	case domain.StateAuthenticated:
		resp := gin.H{
			"status":        "success",
			"authenticated": true,
			"user":          userJSON(result.User.ID, result.User.Username),
		}
		if result.Bypassed {
			resp["second_factor_bypassed"] = true
		}
		c.JSON(http.StatusOK, resp)
	case domain.StatePendingSecondFactor:
		c.JSON(http.StatusOK, gin.H{
			"status":        "pending",
			"authenticated": false,
			"redirect_url":  result.RedirectURL,
		})
	default:
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid credentials"})
	}
}

// Logout destroys the session
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authSvc.Logout(c.Request.Context(), middleware.CurrentSession(c)); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Logged out successfully"})
}

// Status reports whether the session is fully authenticated
func (h *AuthHandlers) Status(c *gin.Context) {
	status, err := h.authSvc.Status(c.Request.Context(), middleware.CurrentSession(c))
	if err != nil {
		h.logger.Error("auth status failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "success", "authenticated": false, "state": domain.StateAnonymous})
		return
	}

	resp := gin.H{
		"status":        "success",
		"authenticated": status.Authenticated(),
		"state":         status.State,
	}
	if status.Authenticated() {
		resp["user"] = userJSON(status.Identity.ID, status.Identity.Username)
	}
	c.JSON(http.StatusOK, resp)
}

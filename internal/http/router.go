package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/internal/http/handlers"
	"github.com/you/bokohub/internal/http/middleware"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandlers
	Notes    *handlers.NoteHandlers
	Files    *handlers.FileHandlers
	CodeScan *handlers.CodeScanHandlers
	Admin    *handlers.AdminHandlers
	Health   gin.HandlerFunc
}

// Middleware groups the request pipeline pieces
type Middleware struct {
	Session *middleware.SessionMW
	Casbin  *middleware.CasbinMW
	Limiter *middleware.RateLimiter
}

func BuildRouter(h Handlers, mw Middleware, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	health := h.Health
	if health == nil {
		health = func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	}
	r.GET("/health", health)

	api := r.Group("/api")
	api.Use(middleware.ClientContext(), mw.Session.Handle(), mw.Casbin.Enforce())

	limited := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		if mw.Limiter == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{mw.Limiter.Handle(), handler}
	}

	api.GET("/captcha", h.Auth.Captcha)
	api.POST("/register", limited(h.Auth.Register)...)
	api.POST("/login", limited(h.Auth.Login)...)
	api.GET("/duo-callback", limited(h.Auth.SecondFactorCallback)...)
	api.GET("/2fa/callback", limited(h.Auth.SecondFactorCallback)...)
	api.GET("/logout", h.Auth.Logout)
	api.POST("/logout", h.Auth.Logout)
	api.GET("/auth/status", h.Auth.Status)

	notes := api.Group("/notes")
	notes.GET("", h.Notes.List)
	notes.GET("/", h.Notes.List)
	notes.POST("/create", h.Notes.Create)
	notes.GET("/search", h.Notes.Search)
	notes.DELETE("/delete/:id", h.Notes.Delete)

	files := api.Group("/files")
	files.GET("", h.Files.List)
	files.GET("/", h.Files.List)
	files.POST("/upload", h.Files.Upload)
	files.GET("/download/:id", h.Files.Download)
	files.DELETE("/delete/:id", h.Files.Delete)

	api.POST("/codescan", h.CodeScan.Scan)

	if h.Admin != nil {
		api.GET("/admin-check", h.Admin.Check)
		adm := api.Group("/admin")
		adm.POST("/login", limited(h.Admin.Login)...)
		adm.POST("/logout", h.Admin.Logout)
		adm.GET("/users", h.Admin.Users)
		adm.POST("/users/add", h.Admin.AddUser)
		adm.POST("/users/reset-password", h.Admin.ResetPassword)
		adm.DELETE("/users/:id", h.Admin.DeleteUser)
		adm.POST("/add", h.Admin.AddAdmin)
		adm.POST("/remove/:id", h.Admin.RemoveAdmin)
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
		)
	}
}

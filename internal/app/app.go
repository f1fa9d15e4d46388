package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/internal/config"
	httpx "github.com/you/bokohub/internal/http"
	"github.com/you/bokohub/internal/http/handlers"
	"github.com/you/bokohub/internal/http/middleware"
)

const (
	shutdownTimeout      = 10 * time.Second
	limiterCleanupPeriod = 10 * time.Minute
)

// NewLogger builds the process logger. gin's debug mode gets the development
// encoder.
func NewLogger(ginMode string) (*zap.Logger, error) {
	if ginMode == gin.DebugMode {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewRouter mounts the container's services on a gin engine
func NewRouter(c *Container) (*gin.Engine, *middleware.RateLimiter) {
	cfg, logger := c.Config, c.Logger
	limiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst)

	router := httpx.BuildRouter(
		httpx.Handlers{
			Auth:     handlers.NewAuthHandlers(c.AuthSvc, c.CaptchaSvc, logger, cfg.CaptchaEcho),
			Notes:    handlers.NewNoteHandlers(c.NoteSvc, logger),
			Files:    handlers.NewFileHandlers(c.FileSvc, logger, cfg.UploadMaxSize),
			CodeScan: handlers.NewCodeScanHandlers(c.CodeScanSvc, logger),
			Admin:    handlers.NewAdminHandlers(c.AdminSvc, logger),
			Health: handlers.Health(map[string]handlers.HealthCheck{
				"database": func(ctx context.Context) error {
					sqlDB, err := c.DB.DB()
					if err != nil {
						return err
					}
					return sqlDB.PingContext(ctx)
				},
				"redis": func(ctx context.Context) error {
					return c.RedisClient.Ping(ctx).Err()
				},
			}),
		},
		httpx.Middleware{
			Session: middleware.NewSessionMW(c.SessionStore, middleware.SessionConfig{
				CookieName: cfg.CookieName,
				Secure:     cfg.CookieSecure,
				TTL:        cfg.SessionTTL,
			}, logger),
			Casbin:  middleware.NewCasbinMW(c.PolicySvc, logger),
			Limiter: limiter,
		},
		logger,
	)
	if cfg.UploadMaxSize > 0 {
		router.MaxMultipartMemory = cfg.UploadMaxSize
	}
	return router, limiter
}

// Run wires the application and serves until ctx is cancelled or SIGINT/SIGTERM
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	c, err := NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("shutdown: closing resources", zap.Error(err))
		}
	}()

	router, limiter := NewRouter(c)
	go func() {
		ticker := time.NewTicker(limiterCleanupPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(limiterCleanupPeriod)
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

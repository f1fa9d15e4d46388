package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/you/bokohub/domain"
	"github.com/you/bokohub/internal/config"
	"github.com/you/bokohub/internal/infrastructure/audit"
	"github.com/you/bokohub/internal/infrastructure/auth"
	"github.com/you/bokohub/internal/infrastructure/database"
	"github.com/you/bokohub/internal/infrastructure/llm"
	"github.com/you/bokohub/internal/infrastructure/notifications"
	"github.com/you/bokohub/internal/infrastructure/repositories"
	"github.com/you/bokohub/internal/infrastructure/scanning"
	"github.com/you/bokohub/internal/infrastructure/secondfactor"
	"github.com/you/bokohub/internal/infrastructure/storage"
	"github.com/you/bokohub/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Casbin      *auth.CasbinService
	Blobs       domain.BlobStore
	Audit       domain.AuditLogger
	amqp        *audit.AMQPPublisher

	// Repositories
	UserRepo     domain.UserRepository
	AdminRepo    domain.AdminRepository
	SessionStore *repositories.SessionStoreImpl
	NoteRepo     domain.NoteRepository
	FileRepo     domain.FileRepository

	// Services
	PasswordSvc domain.PasswordService
	CaptchaSvc  domain.CaptchaService
	Broker      domain.SecondFactorBroker
	AuthSvc     domain.AuthService
	AdminSvc    domain.AdminService
	PolicySvc   domain.PolicyService
	NoteSvc     domain.NoteService
	FileSvc     domain.FileService
	CodeScanSvc domain.CodeScanService
}

// NewContainer creates and initializes all dependencies
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	steps := []func(context.Context) error{
		c.initDatabase,
		c.initRedis,
		c.initAudit,
		c.initStorage,
		c.initRepositories,
		c.initSecondFactor,
		c.initServices,
		c.initDefaultAdmin,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	db, err := database.Open(c.Config.DBDriver, c.Config.DSN)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	c.DB = db

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	cas, err := auth.NewCasbinService(db, c.Config.CasbinModelPath)
	if err != nil {
		return fmt.Errorf("casbin: %w", err)
	}
	seeded, err := cas.SeedDefaults()
	if err != nil {
		return fmt.Errorf("casbin: %w", err)
	}
	if seeded {
		c.Logger.Info("casbin: seeded default policies")
	}
	c.Casbin = cas
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rdb, err := database.NewRedis(ctx, c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err != nil {
		return err
	}
	c.RedisClient = rdb
	return nil
}

func (c *Container) initAudit(ctx context.Context) error {
	var sink domain.AuditLogger = audit.NewZapAuditLogger(c.Logger)
	if c.Config.AuditAMQPURL != "" {
		pub, err := audit.DialAMQPPublisher(c.Config.AuditAMQPURL, c.Config.AuditQueue, sink, c.Logger)
		if err != nil {
			return err
		}
		c.amqp = pub
		sink = pub
		c.Logger.Info("audit events published to rabbitmq", zap.String("queue", c.Config.AuditQueue))
	}
	c.Audit = sink
	return nil
}

func (c *Container) initStorage(ctx context.Context) error {
	switch c.Config.StorageDriver {
	case "s3":
		s3cfg := c.Config.S3
		store, err := storage.NewS3BlobStore(ctx, storage.S3Config{
			Bucket:       s3cfg.Bucket,
			Region:       s3cfg.Region,
			BaseEndpoint: s3cfg.BaseEndpoint,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			UsePathStyle: s3cfg.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("s3 storage: %w", err)
		}
		c.Blobs = store
	default:
		store, err := storage.NewLocalBlobStore(c.Config.StorageLocalDir)
		if err != nil {
			return fmt.Errorf("local storage: %w", err)
		}
		c.Blobs = store
	}
	return nil
}

func (c *Container) initRepositories(ctx context.Context) error {
	c.UserRepo = repositories.NewUserRepository(c.DB)
	c.AdminRepo = repositories.NewAdminRepository(c.DB)
	c.SessionStore = repositories.NewSessionStore(c.RedisClient)
	c.NoteRepo = repositories.NewNoteRepository(c.DB)
	c.FileRepo = repositories.NewFileRepository(c.DB)
	return nil
}

// initSecondFactor builds the configured broker. Missing credentials were
// already rejected by config validation; constructor errors here are fatal too.
func (c *Container) initSecondFactor(ctx context.Context) error {
	switch c.Config.SecondFactorProvider {
	case config.ProviderDuo:
		broker, err := secondfactor.NewDuoBroker(secondfactor.DuoConfig{
			ClientID:     c.Config.DuoClientID,
			ClientSecret: c.Config.DuoClientSecret,
			APIHost:      c.Config.DuoAPIHost,
			RedirectURI:  c.Config.DuoRedirectURI,
			Timeout:      c.Config.SecondFactorTimeout,
		})
		if err != nil {
			return err
		}
		c.Broker = broker
	case config.ProviderSMS:
		sms, err := notifications.NewTwilioService(c.Config.TwilioSID, c.Config.TwilioToken, c.Config.TwilioFrom)
		if err != nil {
			return err
		}
		otpSvc := services.NewOTPService(sms, c.RedisClient, services.OTPConfig{
			Length:       c.Config.OTP_Length,
			TTL:          c.Config.OTP_TTL,
			MaxAttempts:  c.Config.OTP_MaxAttempts,
			ResendWindow: c.Config.OTP_ResendWindow,
		})
		broker, err := secondfactor.NewSMSBroker(otpSvc, c.Config.SMSVerifyURL)
		if err != nil {
			return err
		}
		c.Broker = broker
	case config.ProviderNone:
		c.Logger.Warn("second factor disabled")
		return nil
	default:
		return fmt.Errorf("unknown second factor provider %q", c.Config.SecondFactorProvider)
	}

	c.Logger.Info("second factor enabled",
		zap.String("provider", c.Broker.Name()),
		zap.String("on_unavailable", c.Config.OnUnavailable),
	)
	return nil
}

func (c *Container) initServices(ctx context.Context) error {
	c.PasswordSvc = auth.NewPasswordService()
	c.CaptchaSvc = services.NewCaptchaService(c.Config.CaptchaLength)
	c.PolicySvc = services.NewPolicyService(c.Casbin.E)

	c.AuthSvc = services.NewAuthService(
		c.UserRepo,
		c.PasswordSvc,
		c.SessionStore,
		c.CaptchaSvc,
		c.Broker,
		c.Audit,
		c.Logger,
		services.AuthConfig{
			ChallengeTTL:  c.Config.ChallengeTTL,
			OnUnavailable: c.Config.OnUnavailable,
		},
	)

	c.AdminSvc = services.NewAdminService(c.AdminRepo, c.UserRepo, c.PasswordSvc, c.SessionStore, c.Audit, c.Logger)

	scanner, err := scanning.NewCloudmersiveScanner(c.Config.ScannerURL, c.Config.ScannerAPIKey, c.Config.ScannerTimeout)
	if err != nil {
		return err
	}

	c.NoteSvc = services.NewNoteService(c.NoteRepo)
	c.FileSvc = services.NewFileService(c.FileRepo, c.Blobs, scanner, c.Audit, c.Logger, services.FileConfig{
		AllowedExtensions: c.Config.AllowedExtensions,
		MaxSize:           c.Config.UploadMaxSize,
	})
	analyzer, err := llm.NewOllamaAnalyzer(c.Config.OllamaURL, c.Config.OllamaModel, c.Config.OllamaTimeout)
	if err != nil {
		return err
	}
	c.CodeScanSvc = services.NewCodeScanService(analyzer)
	return nil
}

// initDefaultAdmin creates the default admin on an empty admin table. Without
// configured credentials the portal stays closed until one is added by hand.
func (c *Container) initDefaultAdmin(ctx context.Context) error {
	created, err := c.AdminSvc.EnsureDefault(ctx, c.Config.AdminUsername, c.Config.AdminPassword)
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		c.Logger.Warn("admin portal has no accounts; set admin.default_username and admin.default_password")
		return nil
	case err != nil:
		return fmt.Errorf("default admin: %w", err)
	case created:
		c.Logger.Info("created default admin", zap.String("username", c.Config.AdminUsername))
	}
	return nil
}

// Close closes all connections
func (c *Container) Close() error {
	var errs []error
	if c.amqp != nil {
		errs = append(errs, c.amqp.Close())
	}
	if c.RedisClient != nil {
		errs = append(errs, c.RedisClient.Close())
	}
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

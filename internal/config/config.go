package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	TTL          string `yaml:"ttl"`
	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

type CaptchaConfig struct {
	Length  int  `yaml:"length"`
	DevEcho bool `yaml:"dev_echo"`
}

type DuoConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	APIHost      string `yaml:"api_host"`
	RedirectURI  string `yaml:"redirect_uri"`
}

type SMSConfig struct {
	VerifyURL string `yaml:"verify_url"`
}

type SecondFactorConfig struct {
	Provider      string    `yaml:"provider"`
	OnUnavailable string    `yaml:"on_unavailable"`
	ChallengeTTL  string    `yaml:"challenge_ttl"`
	Timeout       string    `yaml:"timeout"`
	Duo           DuoConfig `yaml:"duo"`
	SMS           SMSConfig `yaml:"sms"`
}

type OTPConfig struct {
	TTL          string `yaml:"ttl"`
	Length       int    `yaml:"length"`
	MaxAttempts  int    `yaml:"max_attempts"`
	ResendWindow string `yaml:"resend_window"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	BaseEndpoint string `yaml:"base_endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

type StorageConfig struct {
	Driver   string   `yaml:"driver"`
	LocalDir string   `yaml:"local_dir"`
	S3       S3Config `yaml:"s3"`
}

type UploadConfig struct {
	MaxSizeMB         int64    `yaml:"max_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ScannerConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

type AuditConfig struct {
	AMQPURL string `yaml:"amqp_url"`
	Queue   string `yaml:"queue"`
}

type AdminConfig struct {
	DefaultUsername string `yaml:"default_username"`
	DefaultPassword string `yaml:"default_password"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type ConfigFile struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Session      SessionConfig      `yaml:"session"`
	Captcha      CaptchaConfig      `yaml:"captcha"`
	SecondFactor SecondFactorConfig `yaml:"second_factor"`
	OTP          OTPConfig          `yaml:"otp"`
	Twilio       TwilioConfig       `yaml:"twilio"`
	Casbin       CasbinConfig       `yaml:"casbin"`
	Storage      StorageConfig      `yaml:"storage"`
	Upload       UploadConfig       `yaml:"upload"`
	Scanner      ScannerConfig      `yaml:"scanner"`
	Ollama       OllamaConfig       `yaml:"ollama"`
	Audit        AuditConfig        `yaml:"audit"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Admin        AdminConfig        `yaml:"admin"`
}

// Second factor providers
const (
	ProviderDuo  = "duo"
	ProviderSMS  = "sms"
	ProviderNone = "none"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver      string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionTTL    time.Duration
	CookieName    string
	CookieSecure  bool
	CaptchaLength int
	CaptchaEcho   bool

	SecondFactorProvider string
	OnUnavailable        string
	ChallengeTTL         time.Duration
	SecondFactorTimeout  time.Duration
	DuoClientID          string
	DuoClientSecret      string
	DuoAPIHost           string
	DuoRedirectURI       string
	SMSVerifyURL         string

	OTP_TTL          time.Duration
	OTP_Length       int
	OTP_MaxAttempts  int
	OTP_ResendWindow time.Duration
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string

	CasbinModelPath string

	StorageDriver     string
	StorageLocalDir   string
	S3                S3Config
	UploadMaxSize     int64
	AllowedExtensions []string

	ScannerURL     string
	ScannerAPIKey  string
	ScannerTimeout time.Duration

	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration

	AuditAMQPURL string
	AuditQueue   string

	LoginRatePerMinute int
	LoginBurst         int

	AdminUsername string
	AdminPassword string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads .env when present, then the YAML file named by BOKOHUB_CONFIG
// (default config/config.yml), applies environment overrides and validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(env("BOKOHUB_CONFIG", "config/config.yml"))
}

// LoadFile builds a validated Config from the YAML file at path plus the
// environment
func LoadFile(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	applyEnv(configFile)

	cfg, err := build(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets secrets and deployment-specific values come from the environment
func applyEnv(f *ConfigFile) {
	if v := os.Getenv("BOKOHUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			f.App.Port = port
		}
	}
	f.Database.DSN = env("BOKOHUB_DATABASE_DSN", f.Database.DSN)
	f.Redis.Addr = env("BOKOHUB_REDIS_ADDR", f.Redis.Addr)
	f.Redis.Password = env("BOKOHUB_REDIS_PASSWORD", f.Redis.Password)
	f.SecondFactor.Provider = env("BOKOHUB_SECOND_FACTOR_PROVIDER", f.SecondFactor.Provider)
	f.SecondFactor.Duo.ClientID = env("BOKOHUB_DUO_CLIENT_ID", f.SecondFactor.Duo.ClientID)
	f.SecondFactor.Duo.ClientSecret = env("BOKOHUB_DUO_CLIENT_SECRET", f.SecondFactor.Duo.ClientSecret)
	f.SecondFactor.Duo.APIHost = env("BOKOHUB_DUO_API_HOST", f.SecondFactor.Duo.APIHost)
	f.Twilio.AccountSID = env("BOKOHUB_TWILIO_ACCOUNT_SID", f.Twilio.AccountSID)
	f.Twilio.AuthToken = env("BOKOHUB_TWILIO_AUTH_TOKEN", f.Twilio.AuthToken)
	f.Twilio.FromNumber = env("BOKOHUB_TWILIO_FROM_NUMBER", f.Twilio.FromNumber)
	f.Scanner.APIKey = env("BOKOHUB_CLOUDMERSIVE_KEY", f.Scanner.APIKey)
	f.Storage.S3.AccessKey = env("BOKOHUB_S3_ACCESS_KEY", f.Storage.S3.AccessKey)
	f.Storage.S3.SecretKey = env("BOKOHUB_S3_SECRET_KEY", f.Storage.S3.SecretKey)
	f.Audit.AMQPURL = env("BOKOHUB_AMQP_URL", f.Audit.AMQPURL)
	f.Admin.DefaultUsername = env("BOKOHUB_ADMIN_USERNAME", f.Admin.DefaultUsername)
	f.Admin.DefaultPassword = env("BOKOHUB_ADMIN_PASSWORD", f.Admin.DefaultPassword)
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func build(f *ConfigFile) (*Config, error) {
	cfg := &Config{
		Port:                 fmt.Sprintf("%d", f.App.Port),
		GinMode:              f.App.GinMode,
		DBDriver:             f.Database.Driver,
		DSN:                  f.Database.DSN,
		RedisAddr:            f.Redis.Addr,
		RedisPassword:        f.Redis.Password,
		RedisDB:              f.Redis.DB,
		CookieName:           f.Session.CookieName,
		CookieSecure:         f.Session.CookieSecure,
		CaptchaLength:        f.Captcha.Length,
		CaptchaEcho:          f.Captcha.DevEcho,
		SecondFactorProvider: f.SecondFactor.Provider,
		OnUnavailable:        f.SecondFactor.OnUnavailable,
		DuoClientID:          f.SecondFactor.Duo.ClientID,
		DuoClientSecret:      f.SecondFactor.Duo.ClientSecret,
		DuoAPIHost:           f.SecondFactor.Duo.APIHost,
		DuoRedirectURI:       f.SecondFactor.Duo.RedirectURI,
		SMSVerifyURL:         f.SecondFactor.SMS.VerifyURL,
		OTP_Length:           f.OTP.Length,
		OTP_MaxAttempts:      f.OTP.MaxAttempts,
		TwilioSID:            f.Twilio.AccountSID,
		TwilioToken:          f.Twilio.AuthToken,
		TwilioFrom:           f.Twilio.FromNumber,
		CasbinModelPath:      f.Casbin.ModelPath,
		StorageDriver:        f.Storage.Driver,
		StorageLocalDir:      f.Storage.LocalDir,
		S3:                   f.Storage.S3,
		UploadMaxSize:        f.Upload.MaxSizeMB << 20,
		AllowedExtensions:    f.Upload.AllowedExtensions,
		ScannerURL:           f.Scanner.BaseURL,
		ScannerAPIKey:        f.Scanner.APIKey,
		OllamaURL:            f.Ollama.BaseURL,
		OllamaModel:          f.Ollama.Model,
		AuditAMQPURL:         f.Audit.AMQPURL,
		AuditQueue:           f.Audit.Queue,
		LoginRatePerMinute:   f.RateLimit.PerMinute,
		LoginBurst:           f.RateLimit.Burst,
		AdminUsername:        f.Admin.DefaultUsername,
		AdminPassword:        f.Admin.DefaultPassword,
	}

	var err error
	if cfg.SessionTTL, err = parseDuration("session ttl", f.Session.TTL, 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ChallengeTTL, err = parseDuration("second factor challenge ttl", f.SecondFactor.ChallengeTTL, 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SecondFactorTimeout, err = parseDuration("second factor timeout", f.SecondFactor.Timeout, 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTP_TTL, err = parseDuration("OTP TTL", f.OTP.TTL, 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OTP_ResendWindow, err = parseDuration("OTP resend window", f.OTP.ResendWindow, time.Minute); err != nil {
		return nil, err
	}
	if cfg.ScannerTimeout, err = parseDuration("scanner timeout", f.Scanner.Timeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.OllamaTimeout, err = parseDuration("ollama timeout", f.Ollama.Timeout, 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.Port == "0" {
		cfg.Port = "5000"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "bokohub_session"
	}
	if cfg.SecondFactorProvider == "" {
		cfg.SecondFactorProvider = ProviderNone
	}
	if cfg.OnUnavailable == "" {
		cfg.OnUnavailable = "deny"
	}
	if cfg.StorageDriver == "" {
		cfg.StorageDriver = "local"
	}
	if cfg.StorageDriver == "local" && cfg.StorageLocalDir == "" {
		cfg.StorageLocalDir = "uploads"
	}
	if cfg.LoginRatePerMinute == 0 {
		cfg.LoginRatePerMinute = 10
	}
	if cfg.LoginBurst == 0 {
		cfg.LoginBurst = 5
	}
	return cfg, nil
}

// Validate reports every configuration problem at once. A second factor
// provider without its credentials is an error, never a silently disabled
// capability.
func (c *Config) Validate() error {
	var errs []error

	switch c.SecondFactorProvider {
	case ProviderDuo:
		if c.DuoClientID == "" || c.DuoClientSecret == "" || c.DuoAPIHost == "" || c.DuoRedirectURI == "" {
			errs = append(errs, errors.New("second_factor.provider is duo but duo client_id, client_secret, api_host and redirect_uri are not all set"))
		}
	case ProviderSMS:
		if c.TwilioSID == "" || c.TwilioToken == "" || c.TwilioFrom == "" {
			errs = append(errs, errors.New("second_factor.provider is sms but twilio account_sid, auth_token and from_number are not all set"))
		}
		if c.SMSVerifyURL == "" {
			errs = append(errs, errors.New("second_factor.sms.verify_url is required for the sms provider"))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown second_factor.provider %q", c.SecondFactorProvider))
	}

	if c.OnUnavailable != "deny" && c.OnUnavailable != "bypass" {
		errs = append(errs, fmt.Errorf("second_factor.on_unavailable must be deny or bypass, got %q", c.OnUnavailable))
	}

	for name, d := range map[string]time.Duration{
		"session.ttl":                 c.SessionTTL,
		"second_factor.challenge_ttl": c.ChallengeTTL,
		"second_factor.timeout":       c.SecondFactorTimeout,
		"otp.ttl":                     c.OTP_TTL,
		"otp.resend_window":           c.OTP_ResendWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	switch c.DBDriver {
	case "", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.DBDriver))
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}

	switch c.StorageDriver {
	case "local":
		if c.StorageLocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required for the local driver"))
		}
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q", c.StorageDriver))
	}

	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("admin.default_username and admin.default_password must be set together"))
	}

	if c.ScannerAPIKey == "" {
		errs = append(errs, errors.New("scanner.api_key is required; uploads are never stored unscanned"))
	}

	return errors.Join(errs...)
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

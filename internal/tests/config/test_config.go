package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/you/bokohub/internal/config"
)

// Environment variables pointing the e2e suite at real services
const (
	EnvDatabaseDSN = "BOKOHUB_E2E_DATABASE_DSN"
	EnvRedisAddr   = "BOKOHUB_E2E_REDIS_ADDR"
)

// LoadTestConfig loads configuration for E2E testing. The test is skipped
// when no postgres or redis instance was provided.
func LoadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	if err := godotenv.Load(filepath.Join(GetProjectRoot(), ".env.test")); err != nil {
		t.Logf("no .env.test loaded: %v", err)
	}

	dsn := os.Getenv(EnvDatabaseDSN)
	redisAddr := os.Getenv(EnvRedisAddr)
	if dsn == "" || redisAddr == "" {
		t.Skipf("%s and %s must be set for E2E tests", EnvDatabaseDSN, EnvRedisAddr)
	}

	t.Setenv("BOKOHUB_DATABASE_DSN", dsn)
	t.Setenv("BOKOHUB_REDIS_ADDR", redisAddr)
	t.Setenv("BOKOHUB_SECOND_FACTOR_PROVIDER", config.ProviderNone)
	t.Setenv("BOKOHUB_AMQP_URL", "")
	if os.Getenv("BOKOHUB_CLOUDMERSIVE_KEY") == "" {
		t.Setenv("BOKOHUB_CLOUDMERSIVE_KEY", "e2e-test-key")
	}

	cfg, err := config.LoadFile(filepath.Join(GetProjectRoot(), "config", "config.yml"))
	if err != nil {
		t.Fatalf("failed to load test configuration: %v", err)
	}

	cfg.DBDriver = "postgres"
	cfg.RedisDB = GetTestRedisDB()
	cfg.CaptchaEcho = true
	cfg.StorageDriver = "local"
	cfg.StorageLocalDir = t.TempDir()
	cfg.LoginRatePerMinute = 600
	cfg.LoginBurst = 100

	t.Logf("test config loaded - redis: %s (DB %d)", cfg.RedisAddr, cfg.RedisDB)
	return cfg
}

// GetTestRedisDB returns the Redis database number for tests
func GetTestRedisDB() int {
	return 1
}

// GetProjectRoot returns the directory holding go.mod
func GetProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "."
}

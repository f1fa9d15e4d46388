package database

import (
	"fmt"

	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/you/bokohub/internal/infrastructure/repositories"
)

// Open creates a new database connection. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	switch driver {
	case "postgres", "":
		return gorm.Open(postgres.Open(dsn), config)
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// AutoMigrate creates the application tables and the Casbin policy table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&repositories.DBUser{}, &repositories.DBAdmin{}, &repositories.DBNote{}, &repositories.DBFile{}); err != nil {
		return fmt.Errorf("failed to migrate application tables: %w", err)
	}

	// The adapter creates casbin_rule on construction.
	if _, err := gormadapter.NewAdapterByDB(db); err != nil {
		return fmt.Errorf("failed to initialize Casbin GORM adapter: %w", err)
	}

	return nil
}

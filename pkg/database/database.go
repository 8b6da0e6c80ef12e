package database

import (
	"fmt"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db *gorm.DB
)

// InitDB opens the cache database configured in cfg and keeps it as the
// process-wide instance returned by GetDB.
func InitDB(cfg *config.Config, log *zap.Logger) error {
	conn, err := Open(cfg, log)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

// Open connects to the cache database and migrates the cache schema
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Error
	if cfg.Server.Env == "development" {
		logLevel = logger.Warn
	}

	// Override log level if explicitly set in config
	switch cfg.Database.LogLevel {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	// Pick the dialector for the configured driver
	var dialector gorm.Dialector
	switch cfg.Cache.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.SSLMode,
		)
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	case "sqlite", "":
		dialector = sqlite.Open(sqliteDSN(cfg.Cache.Path))
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Cache.Driver == "postgres" {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	} else {
		// SQLite allows a single writer; one connection also keeps :memory: databases shared
		sqlDB.SetMaxOpenConns(1)
	}

	// Migrate before anyone reads the cache
	if err := Migrate(conn, log); err != nil {
		return nil, err
	}

	return conn, nil
}

// Migrate creates or updates the cache schema
func Migrate(conn *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	start := time.Now()
	log.Info("Starting cache migration...")

	if err := conn.AutoMigrate(model.CacheModels()...); err != nil {
		log.Error("Cache migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate cache schema: %w", err)
	}

	log.Info("Cache migration completed successfully",
		zap.Duration("duration", time.Since(start)))
	return nil
}

// GetDB returns a reference to the database instance
func GetDB() *gorm.DB {
	return db
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

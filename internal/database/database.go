package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/config"
	"storefront/internal/models"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// NewDB opens a connection for the dialect inferred from the DSN.
func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("database: empty dsn")
	}
	var dialector gorm.Dialector
	switch DetectDialect(dsn) {
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite3://"))
	default:
		dialector = mysql.Open(strings.TrimPrefix(dsn, "mysql://"))
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(), // errors only, not every SQL query
	})
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return db, nil
}

// DetectDialect infers the dialect from a DSN. Anything that is not clearly
// postgres or sqlite is treated as a go-sql-driver/mysql DSN.
func DetectDialect(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return DialectPostgres
	case strings.HasPrefix(lower, "file:"), strings.HasPrefix(lower, "sqlite://"),
		strings.HasPrefix(lower, "sqlite3://"), lower == ":memory:",
		strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return DialectSQLite
	default:
		return DialectMySQL
	}
}

func newGormLogger() logger.Interface {
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Error,
		IgnoreRecordNotFoundError: true,
	})
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.ReferralPayout{},
		&models.PayoutRequest{},
		&models.Notification{},
		&models.SystemSetting{},
	)
}

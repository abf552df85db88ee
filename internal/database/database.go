package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"transaction-summary-api/internal/config"
	"transaction-summary-api/pkg/logging"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Store owns the connection pool. It is created once in main and passed to
// the services that need it.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL when DATABASE_URL is set, falling back to a
// local SQLite file otherwise, and creates missing tables.
func Open(cfg *config.Config) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.DBLogLevel)),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	}

	var (
		db      *gorm.DB
		err     error
		dialect string
	)
	if dsn := cfg.DatabaseURL; dsn == "" {
		// Fallback to SQLite for development
		logging.Infof("Database URL not set, using SQLite at %s", cfg.SQLitePath)
		dialect = "sqlite"
		db, err = gorm.Open(sqlite.Open(sqliteDSN(cfg.SQLitePath)), gormCfg)
	} else {
		dialect = "postgres"
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	configurePool(sqlDB, cfg, dialect)

	s := &Store{db: db}
	if err := s.autoMigrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Infof("Database connected successfully (%s)", dialect)
	return s, nil
}

// DB returns the underlying gorm handle for read-only queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithinTransaction runs fn in a single database transaction. The transaction
// commits when fn returns nil and rolls back on error or panic.
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Ping checks the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func configurePool(sqlDB *sql.DB, cfg *config.Config, dialect string) {
	if dialect == "sqlite" {
		// a single writer avoids "database is locked" between pooled connections
		sqlDB.SetMaxOpenConns(1)
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// pingTimeout bounds the health check round trip.
const pingTimeout = 2 * time.Second

// Healthy reports whether a ping succeeds within pingTimeout.
func (s *Store) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.Ping(ctx)
}

// Package repository provides data access layer using GORM for database operations.
package repository

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/feedback-ledger/internal/config"
	"github.com/aimd54/feedback-ledger/internal/models"
	"github.com/aimd54/feedback-ledger/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB is the ledger's storage handle. It is opened once at startup and closed once at shutdown.
type DB struct {
	*gorm.DB
}

// NewDB opens the store selected by cfg.Driver.
func NewDB(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	// Configure GORM logger
	gormLogLevel := gormlogger.Warn
	if log.IsDebug() {
		gormLogLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel),
		TranslateError: true,
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(&cfg.Postgres, gormConfig, log)
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLite.Path, gormConfig, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(cfg *config.PostgresConfig, gormConfig *gorm.Config, log *logger.Logger) (*DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to PostgreSQL")

	return &DB{db}, nil
}

// OpenSQLite opens a single-file (or ":memory:") SQLite store with foreign keys enforced.
func OpenSQLite(path string, gormConfig *gorm.Config, log *logger.Logger) (*DB, error) {
	if gormConfig == nil {
		gormConfig = &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
			TranslateError: true,
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// One writer; an in-memory database also lives only as long as its single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	log.Info().
		Str("path", path).
		Msg("Opened SQLite store")

	return &DB{db}, nil
}

// AutoMigrate creates or updates every ledger table from the GORM models.
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(models.All()...)
}

// Migrate brings the schema up to date. PostgreSQL uses the versioned SQL
// migrations; SQLite is migrated from the models.
func (db *DB) Migrate() error {
	if db.Dialector.Name() != config.DriverPostgres {
		return db.AutoMigrate()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	defer src.Close()

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the database is healthy.
func (db *DB) Health() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ensureMember inserts an empty member row when none exists so dependent rows
// always satisfy their foreign key.
func ensureMember(tx *gorm.DB, memberID string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoNothing: true,
	}).Create(newMemberRow(tx, memberID)).Error
}

// newMemberRow returns the row inserted for a member seen for the first time.
// join_date is stamped with the insert time and never overwritten on conflict.
func newMemberRow(tx *gorm.DB, memberID string) *models.Member {
	row := models.NewMember(memberID)
	row.JoinDate = tx.NowFunc().UnixMilli()
	return row
}

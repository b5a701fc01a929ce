package persistence

import (
	"fmt"
	"time"

	"github.com/erp/billsync/internal/infrastructure/config"
	"github.com/erp/billsync/internal/infrastructure/persistence/models"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the PostgreSQL connection shared by the billing repositories
type Database struct {
	DB *gorm.DB
}

// DatabaseOption configures a Database after the connection is opened
type DatabaseOption func(*gorm.DB) error

// WithQueryTracing installs query spans through plugin
func WithQueryTracing(plugin *telemetry.DBTracingPlugin) DatabaseOption {
	return func(db *gorm.DB) error {
		if err := plugin.Register(db); err != nil {
			return fmt.Errorf("failed to register query tracing: %w", err)
		}
		return nil
	}
}

// NewDatabaseWithCustomLogger opens the connection pool described by cfg and
// reports SQL through gormLogger. The pool is pinged before returning.
func NewDatabaseWithCustomLogger(cfg *config.DatabaseConfig, gormLogger logger.Interface, opts ...DatabaseOption) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	database := &Database{DB: db}
	if err := database.apply(opts...); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return database, nil
}

func (d *Database) apply(opts ...DatabaseOption) error {
	for _, opt := range opts {
		if err := opt(d.DB); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// ConnectionStats is the pool usage reported by the system info endpoint
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration_ns"`
}

// Stats returns connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// AutoMigrate creates or updates every billing table. Unit tests run it
// against SQLite; deployed schemas come from cmd/migrate.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.RecurringScheduleModel{},
		&models.InvoiceModel{},
		&models.QuotationModel{},
		&models.ContactMappingModel{},
		&models.SyncLogModel{},
		&models.GenerationHistoryModel{},
		&models.DocumentSequenceModel{},
		&models.ProjectPartyModel{},
	)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"catcore/internal/config"
	applogger "catcore/internal/logger"
	"catcore/internal/metrics"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps a gorm.DB with connection-pool configuration and metrics,
// grounded on the teacher's internal/database/database.go.
type DB struct {
	*gorm.DB
	metrics *metrics.Metrics
	logger  *applogger.Logger
}

// New opens a Postgres connection and configures the pool from cfg.
func New(cfg *config.DatabaseConfig, m *metrics.Metrics, log *applogger.Logger) (*DB, error) {
	gormLog := gormlogger.New(
		log,
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}

	log.Info("database connection established")

	return &DB{DB: db, metrics: m, logger: log}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health pings the database with a bounded timeout.
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Stats returns the pool's current statistics and records the open-
// connection gauge.
func (db *DB) Stats() sql.DBStats {
	sqlDB, _ := db.DB.DB()
	stats := sqlDB.Stats()
	if db.metrics != nil {
		db.metrics.DBConnections.Set(float64(stats.OpenConnections))
	}
	return stats
}

// RecordOperation records a query's outcome and latency.
func (db *DB) RecordOperation(operation string, duration time.Duration, err error) {
	if db.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	db.metrics.RecordDBOperation(operation, status, duration)
}

// AutoMigrate creates or updates the schema for every model the store
// package owns.
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(&ItemModel{}, &SeenItemModel{}, &SessionModel{}, &ResponseModel{})
}

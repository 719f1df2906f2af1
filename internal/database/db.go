package database

import (
	"fmt"
	"time"

	"transport-requisition/internal/config"
	"transport-requisition/internal/logger"
	"transport-requisition/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&model.User{},
		&model.Vehicle{},
		&model.Driver{},
		&model.Requisition{},
		&model.Approval{},
		&model.Route{},
		&model.Trip{},
		&model.Ticket{},
		&model.Subscription{},
		&model.AuditLog{},
	}
}

// NewConnection opens the pool, applies pool limits and migrates the schema.
// SQL logging goes through zap.
func NewConnection(cfg config.DatabaseConfig, logLevel string, log *zap.Logger) (*gorm.DB, error) {
	sqlLog := gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.GormLevel(logLevel),
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: sqlLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return db, nil
}

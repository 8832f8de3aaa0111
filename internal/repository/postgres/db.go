package postgres

import (
	"github.com/resumecook/billing/internal/config"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens the Postgres connection pool and runs schema migration for the
// billing tables.
func NewDB(cfg *config.Configuration, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to database").
			Mark(ierr.ErrDatabase)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to configure database pool").
			Mark(ierr.ErrDatabase)
	}
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	if err := db.AutoMigrate(&subscriptionRecordModel{}, &processedEventModel{}); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to migrate billing schema").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("database ready", "max_open_conns", cfg.Postgres.MaxOpenConns)
	return db, nil
}

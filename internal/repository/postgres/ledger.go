package postgres

import (
	"context"
	"time"

	"github.com/resumecook/billing/internal/domain/ledger"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type processedEventModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (processedEventModel) TableName() string {
	return "processed_events"
}

type ledgerRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewLedgerRepository creates a Postgres-backed idempotency ledger.
func NewLedgerRepository(db *gorm.DB, log *logger.Logger) ledger.Repository {
	return &ledgerRepository{db: db, log: log}
}

func (r *ledgerRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&processedEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to read idempotency ledger").
			Mark(ierr.ErrDatabase)
	}
	return count > 0, nil
}

func (r *ledgerRepository) MarkIfNew(ctx context.Context, eventID string) (bool, error) {
	// Conditional insert on the primary key: the storage layer's native
	// conflict handling makes this atomic with no extra locking.
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&processedEventModel{
			EventID:     eventID,
			ProcessedAt: time.Now().UTC(),
		})
	if res.Error != nil {
		return false, ierr.WithError(res.Error).
			WithHint("Failed to write idempotency ledger").
			Mark(ierr.ErrDatabase)
	}
	return res.RowsAffected > 0, nil
}

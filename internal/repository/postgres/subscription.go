package postgres

import (
	"context"
	"time"

	"github.com/resumecook/billing/internal/domain/subscription"
	ierr "github.com/resumecook/billing/internal/errors"
	"github.com/resumecook/billing/internal/logger"
	"github.com/resumecook/billing/internal/types"
	"gorm.io/gorm"
)

// subscriptionRecordModel is the storage shape of subscription.Record.
// updated_at is written explicitly: it is the optimistic-concurrency token,
// never auto-touched by the ORM.
type subscriptionRecordModel struct {
	UserID                 string     `gorm:"column:user_id;primaryKey"`
	Status                 string     `gorm:"column:status;not null"`
	Plan                   string     `gorm:"column:plan;not null"`
	ExternalCustomerID     string     `gorm:"column:external_customer_id;index"`
	ExternalSubscriptionID string     `gorm:"column:external_subscription_id;index"`
	CurrentPeriodStart     *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd       *time.Time `gorm:"column:current_period_end"`
	CancelAtPeriodEnd      bool       `gorm:"column:cancel_at_period_end;not null"`
	TrialStartedAt         *time.Time `gorm:"column:trial_started_at"`
	TrialClaimed           bool       `gorm:"column:trial_claimed;not null"`
	LastEventID            string     `gorm:"column:last_event_id"`
	LastEventAt            *time.Time `gorm:"column:last_event_at"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (subscriptionRecordModel) TableName() string {
	return "subscription_records"
}

func toSubscriptionModel(rec *subscription.Record) *subscriptionRecordModel {
	return &subscriptionRecordModel{
		UserID:                 rec.UserID,
		Status:                 rec.Status.String(),
		Plan:                   rec.Plan.String(),
		ExternalCustomerID:     rec.ExternalCustomerID,
		ExternalSubscriptionID: rec.ExternalSubscriptionID,
		CurrentPeriodStart:     truncatePtr(rec.CurrentPeriodStart),
		CurrentPeriodEnd:       truncatePtr(rec.CurrentPeriodEnd),
		CancelAtPeriodEnd:      rec.CancelAtPeriodEnd,
		TrialStartedAt:         truncatePtr(rec.TrialStartedAt),
		TrialClaimed:           rec.TrialClaimed,
		LastEventID:            rec.LastEventID,
		LastEventAt:            truncatePtr(rec.LastEventAt),
		CreatedAt:              rec.CreatedAt.Truncate(time.Microsecond),
		UpdatedAt:              rec.UpdatedAt.Truncate(time.Microsecond),
	}
}

func fromSubscriptionModel(m *subscriptionRecordModel) *subscription.Record {
	return &subscription.Record{
		UserID:                 m.UserID,
		Status:                 types.SubscriptionStatus(m.Status),
		Plan:                   types.Plan(m.Plan),
		ExternalCustomerID:     m.ExternalCustomerID,
		ExternalSubscriptionID: m.ExternalSubscriptionID,
		CurrentPeriodStart:     m.CurrentPeriodStart,
		CurrentPeriodEnd:       m.CurrentPeriodEnd,
		CancelAtPeriodEnd:      m.CancelAtPeriodEnd,
		TrialStartedAt:         m.TrialStartedAt,
		TrialClaimed:           m.TrialClaimed,
		LastEventID:            m.LastEventID,
		LastEventAt:            m.LastEventAt,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// truncatePtr truncates to the database's microsecond precision so a value
// read back compares equal to the value written.
func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Truncate(time.Microsecond)
	return &v
}

type subscriptionRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSubscriptionRepository creates a Postgres-backed subscription record
// repository.
func NewSubscriptionRepository(db *gorm.DB, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, log: log}
}

func (r *subscriptionRepository) Get(ctx context.Context, userID string) (*subscription.Record, error) {
	var m subscriptionRecordModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if err != nil {
		if ierr.Is(err, gorm.ErrRecordNotFound) {
			return nil, ierr.NewErrorf("no subscription record for user %s", userID).
				WithHint("Subscription record not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to read subscription record").
			Mark(ierr.ErrDatabase)
	}
	return fromSubscriptionModel(&m), nil
}

func (r *subscriptionRepository) Create(ctx context.Context, rec *subscription.Record) error {
	m := toSubscriptionModel(rec)
	err := r.db.WithContext(ctx).Create(m).Error
	if err != nil {
		// A concurrent writer created the record first; the caller re-reads
		// and retries its updater against the fresh record.
		if ierr.Is(err, gorm.ErrDuplicatedKey) {
			return ierr.WithError(err).
				WithHint("Subscription record already exists").
				Mark(ierr.ErrVersionConflict)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription record").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Update(ctx context.Context, rec *subscription.Record, expectedUpdatedAt time.Time) error {
	m := toSubscriptionModel(rec)

	res := r.db.WithContext(ctx).
		Model(&subscriptionRecordModel{}).
		Where("user_id = ? AND updated_at = ?", rec.UserID, expectedUpdatedAt.Truncate(time.Microsecond)).
		Updates(map[string]interface{}{
			"status":                   m.Status,
			"plan":                     m.Plan,
			"external_customer_id":     m.ExternalCustomerID,
			"external_subscription_id": m.ExternalSubscriptionID,
			"current_period_start":     m.CurrentPeriodStart,
			"current_period_end":       m.CurrentPeriodEnd,
			"cancel_at_period_end":     m.CancelAtPeriodEnd,
			"trial_started_at":         m.TrialStartedAt,
			"trial_claimed":            m.TrialClaimed,
			"last_event_id":            m.LastEventID,
			"last_event_at":            m.LastEventAt,
			"updated_at":               m.UpdatedAt,
		})
	if res.Error != nil {
		return ierr.WithError(res.Error).
			WithHint("Failed to update subscription record").
			Mark(ierr.ErrDatabase)
	}
	if res.RowsAffected == 0 {
		return ierr.NewErrorf("subscription record for user %s changed concurrently", rec.UserID).
			WithHint("Subscription record was modified by a concurrent writer").
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

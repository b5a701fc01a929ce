package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// persistenceError classifies a storage failure as invoicing.ErrPersistence and keeps the cause
func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", invoicing.ErrPersistence, op, err)
}

// GormScheduleRepository implements invoicing.ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormScheduleRepository) WithTx(tx *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: tx}
}

// FindDue returns active schedules due on or before asOf, oldest first
func (r *GormScheduleRepository) FindDue(ctx context.Context, asOf time.Time) ([]invoicing.RecurringSchedule, error) {
	// next_invoice_date is a civil date; compare against the following day so
	// the bound holds for both date columns and text-stored timestamps.
	dayAfter := asOf.AddDate(0, 0, 1).Format(time.DateOnly)

	var rows []models.RecurringScheduleModel
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND next_invoice_date < ?", true, dayAfter).
		Order("next_invoice_date ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistenceError("find due schedules", err)
	}

	schedules := make([]invoicing.RecurringSchedule, len(rows))
	for i := range rows {
		schedules[i] = *rows[i].ToDomain()
	}
	return schedules, nil
}

// FindByID returns a schedule or shared.ErrNotFound
func (r *GormScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.RecurringSchedule, error) {
	var row models.RecurringScheduleModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistenceError("find schedule", err)
	}
	return row.ToDomain(), nil
}

// Save creates or updates a schedule
func (r *GormScheduleRepository) Save(ctx context.Context, schedule *invoicing.RecurringSchedule) error {
	if err := r.db.WithContext(ctx).Save(models.RecurringScheduleModelFromDomain(schedule)).Error; err != nil {
		return persistenceError("save schedule", err)
	}
	return nil
}

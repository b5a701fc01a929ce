package persistence

import (
	"context"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSyncLogRepository implements the append-only invoicing.SyncLogRepository.
// It has no update or delete methods.
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts one entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *invoicing.SyncLogEntry) error {
	if err := r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry)).Error; err != nil {
		return persistenceError("append sync log", err)
	}
	return nil
}

// FindByEntity returns the entries of one entity, oldest first
func (r *GormSyncLogRepository) FindByEntity(ctx context.Context, entityType invoicing.SyncEntityType, entityID uuid.UUID) ([]invoicing.SyncLogEntry, error) {
	var rows []models.SyncLogModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistenceError("find sync log", err)
	}

	entries := make([]invoicing.SyncLogEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, nil
}

// GormGenerationHistoryRepository implements invoicing.GenerationHistoryRepository
type GormGenerationHistoryRepository struct {
	db *gorm.DB
}

// NewGormGenerationHistoryRepository creates a new GormGenerationHistoryRepository
func NewGormGenerationHistoryRepository(db *gorm.DB) *GormGenerationHistoryRepository {
	return &GormGenerationHistoryRepository{db: db}
}

// FindBySchedule returns the invoices generated from a schedule, oldest first
func (r *GormGenerationHistoryRepository) FindBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]invoicing.GenerationRecord, error) {
	var rows []models.GenerationHistoryModel
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("generated_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistenceError("find generation history", err)
	}

	records := make([]invoicing.GenerationRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

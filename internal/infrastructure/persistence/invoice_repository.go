package persistence

import (
	"context"
	"errors"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: tx}
}

// FindByID returns an invoice or shared.ErrNotFound
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	var row models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistenceError("find invoice", err)
	}
	return row.ToDomain(), nil
}

// FindPendingSync returns published invoices in a non-terminal status
func (r *GormInvoiceRepository) FindPendingSync(ctx context.Context) ([]invoicing.Invoice, error) {
	statuses := make([]string, 0, 3)
	for _, s := range invoicing.NonTerminalInvoiceStatuses() {
		statuses = append(statuses, string(s))
	}

	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND external_id IS NOT NULL AND external_id <> ''", statuses).
		Order("issue_date ASC, number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistenceError("find invoices pending sync", err)
	}

	invoices := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, nil
}

// Save updates an existing invoice with optimistic locking
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	currentVersion := invoice.Version
	model := models.InvoiceModelFromDomain(invoice)
	model.Version = currentVersion + 1

	result := r.db.WithContext(ctx).
		Model(model).
		Where("version = ?", currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return persistenceError("save invoice", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	invoice.Version = model.Version
	return nil
}

// SaveGenerated inserts a generated invoice and its history record and
// updates the advanced schedule in one transaction
func (r *GormInvoiceRepository) SaveGenerated(ctx context.Context, invoice *invoicing.Invoice, schedule *invoicing.RecurringSchedule, record invoicing.GenerationRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
			return err
		}
		if err := tx.Create(models.GenerationHistoryModelFromDomain(record)).Error; err != nil {
			return err
		}
		return tx.Save(models.RecurringScheduleModelFromDomain(schedule)).Error
	})
	if err != nil {
		return persistenceError("save generated invoice", err)
	}
	return nil
}

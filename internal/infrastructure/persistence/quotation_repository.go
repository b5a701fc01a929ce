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

// GormQuotationRepository implements invoicing.QuotationRepository using GORM
type GormQuotationRepository struct {
	db *gorm.DB
}

// NewGormQuotationRepository creates a new GormQuotationRepository
func NewGormQuotationRepository(db *gorm.DB) *GormQuotationRepository {
	return &GormQuotationRepository{db: db}
}

// FindByID returns a quotation or shared.ErrNotFound
func (r *GormQuotationRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Quotation, error) {
	var row models.QuotationModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistenceError("find quotation", err)
	}
	return row.ToDomain(), nil
}

// FindPendingSync returns published quotations in a non-terminal status
func (r *GormQuotationRepository) FindPendingSync(ctx context.Context) ([]invoicing.Quotation, error) {
	statuses := make([]string, 0, 2)
	for _, s := range invoicing.NonTerminalQuotationStatuses() {
		statuses = append(statuses, string(s))
	}

	var rows []models.QuotationModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND external_id IS NOT NULL AND external_id <> ''", statuses).
		Order("issue_date ASC, number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, persistenceError("find quotations pending sync", err)
	}

	quotations := make([]invoicing.Quotation, len(rows))
	for i := range rows {
		quotations[i] = *rows[i].ToDomain()
	}
	return quotations, nil
}

// Save creates or updates a quotation
func (r *GormQuotationRepository) Save(ctx context.Context, quotation *invoicing.Quotation) error {
	if err := r.db.WithContext(ctx).Save(models.QuotationModelFromDomain(quotation)).Error; err != nil {
		return persistenceError("save quotation", err)
	}
	return nil
}

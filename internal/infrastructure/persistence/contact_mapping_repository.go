package persistence

import (
	"context"
	"errors"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormContactMappingRepository implements invoicing.ContactMappingRepository using GORM
type GormContactMappingRepository struct {
	db *gorm.DB
}

// NewGormContactMappingRepository creates a new GormContactMappingRepository
func NewGormContactMappingRepository(db *gorm.DB) *GormContactMappingRepository {
	return &GormContactMappingRepository{db: db}
}

// FindByParty returns the mapping of a party or shared.ErrNotFound
func (r *GormContactMappingRepository) FindByParty(ctx context.Context, partyType invoicing.PartyType, partyID uuid.UUID) (*invoicing.ContactMapping, error) {
	var row models.ContactMappingModel
	err := r.db.WithContext(ctx).
		Where("party_type = ? AND party_id = ?", string(partyType), partyID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistenceError("find contact mapping", err)
	}
	return row.ToDomain(), nil
}

// Save inserts the mapping, replacing the external contact id when the party is already mapped
func (r *GormContactMappingRepository) Save(ctx context.Context, mapping *invoicing.ContactMapping) error {
	var row models.ContactMappingModel
	row.FromDomain(mapping)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "party_type"}, {Name: "party_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"external_contact_id", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return persistenceError("save contact mapping", err)
	}
	return nil
}

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

// GormProjectDirectory implements invoicing.ProjectDirectory on the project_parties table
type GormProjectDirectory struct {
	db *gorm.DB
}

// NewGormProjectDirectory creates a new GormProjectDirectory
func NewGormProjectDirectory(db *gorm.DB) *GormProjectDirectory {
	return &GormProjectDirectory{db: db}
}

// FindByProject returns the parties of a project or shared.ErrNotFound
func (d *GormProjectDirectory) FindByProject(ctx context.Context, projectID uuid.UUID) (*invoicing.ProjectParties, error) {
	var row models.ProjectPartyModel
	if err := d.db.WithContext(ctx).First(&row, "project_id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistenceError("find project parties", err)
	}
	return row.ToDomain(), nil
}

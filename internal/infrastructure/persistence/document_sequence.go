package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// nextSequenceSQL increments the counter of (prefix, year), creating it at 1.
// The upsert is a single statement, so concurrent callers never receive the same value.
const nextSequenceSQL = `INSERT INTO document_sequences (prefix, year, last_value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (prefix, year) DO UPDATE
SET last_value = document_sequences.last_value + 1, updated_at = excluded.updated_at
RETURNING last_value`

// GormDocumentSequence implements invoicing.DocumentSequence on the document_sequences table
type GormDocumentSequence struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormDocumentSequence creates a new GormDocumentSequence
func NewGormDocumentSequence(db *gorm.DB) *GormDocumentSequence {
	return &GormDocumentSequence{db: db, now: time.Now}
}

// Next atomically allocates the next number for prefix in year, starting at 1
func (s *GormDocumentSequence) Next(ctx context.Context, prefix string, year int) (int64, error) {
	var value int64
	result := s.db.WithContext(ctx).Raw(nextSequenceSQL, prefix, year, s.now().UTC()).Scan(&value)
	if result.Error != nil {
		return 0, persistenceError("allocate document number", result.Error)
	}
	return value, nil
}

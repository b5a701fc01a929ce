// Package models contains GORM-specific persistence models that map to the
// billing tables. These models are separate from domain entities to keep the
// domain layer free from ORM concerns.
//
// Structure:
// - base.go: shared identity and version columns
// - invoicing.go: schedules, invoices, quotations, contact mappings,
//   generation history, sync log and document sequences
package models

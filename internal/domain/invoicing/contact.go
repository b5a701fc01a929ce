package invoicing

import (
	"strings"
	"time"

	"github.com/erp/billsync/internal/domain/shared"
	"github.com/google/uuid"
)

// PartyType distinguishes the two kinds of local billing parties
type PartyType string

const (
	// PartyTypePerson is an individual client profile
	PartyTypePerson PartyType = "person"
	// PartyTypeOrganization is a company
	PartyTypeOrganization PartyType = "organization"
)

// IsValid returns true if the party type is known
func (t PartyType) IsValid() bool {
	return t == PartyTypePerson || t == PartyTypeOrganization
}

// Party is a local client or organization that can be billed
type Party struct {
	Type             PartyType
	ID               uuid.UUID
	FirstName        string
	LastName         string
	OrganizationName string
	Email            string
	Street           string
	Zip              string
	City             string
	CountryCode      string
}

// IsCompany reports whether the party carries an organization name
func (p Party) IsCompany() bool {
	return strings.TrimSpace(p.OrganizationName) != ""
}

// DisplayName returns the organization name or the person's full name
func (p Party) DisplayName() string {
	if p.IsCompany() {
		return strings.TrimSpace(p.OrganizationName)
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Validate requires an id and a usable name
func (p Party) Validate() error {
	if !p.Type.IsValid() || p.ID == uuid.Nil || p.DisplayName() == "" {
		return ErrInvalidParty
	}
	return nil
}

// ProjectParties are the billable parties and notification recipients of a project
type ProjectParties struct {
	ProjectID    uuid.UUID
	Organization *Party
	Client       *Party
	Recipients   []string
}

// Candidates returns the parties to try for contact resolution, organization first
func (p *ProjectParties) Candidates() []Party {
	candidates := make([]Party, 0, 2)
	if p.Organization != nil {
		candidates = append(candidates, *p.Organization)
	}
	if p.Client != nil {
		candidates = append(candidates, *p.Client)
	}
	return candidates
}

// ContactMapping links a local party to its contact id on the accounting platform.
// There is at most one mapping per party.
type ContactMapping struct {
	shared.BaseEntity
	PartyType         PartyType
	PartyID           uuid.UUID
	ExternalContactID string
}

// NewContactMapping creates a mapping for party
func NewContactMapping(party Party, externalContactID string, now time.Time) (*ContactMapping, error) {
	if !party.Type.IsValid() || party.ID == uuid.Nil {
		return nil, ErrInvalidParty
	}
	if strings.TrimSpace(externalContactID) == "" {
		return nil, ErrInvalidExternalID
	}
	return &ContactMapping{
		BaseEntity:        shared.NewBaseEntityAt(now),
		PartyType:         party.Type,
		PartyID:           party.ID,
		ExternalContactID: externalContactID,
	}, nil
}

// Remap points an existing mapping at a new platform contact
func (m *ContactMapping) Remap(externalContactID string, now time.Time) error {
	if strings.TrimSpace(externalContactID) == "" {
		return ErrInvalidExternalID
	}
	m.ExternalContactID = externalContactID
	m.UpdatedAt = now
	return nil
}

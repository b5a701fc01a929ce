package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultContactPageSize matches the platform's default page size
const defaultContactPageSize = 25

// ContactSyncService keeps local parties linked to platform contacts
type ContactSyncService struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger
}

// NewContactSyncService creates a new ContactSyncService
func NewContactSyncService(deps Deps, settings Settings) *ContactSyncService {
	deps = deps.withDefaults()
	return &ContactSyncService{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   deps.Logger.Named("contact_sync"),
	}
}

// EnsureContact returns the mapping of party, creating the platform contact
// first when there is none. With force set, a new contact is created and the
// existing mapping is repointed at it.
func (s *ContactSyncService) EnsureContact(ctx context.Context, party invoicing.Party, force bool) (*invoicing.ContactMapping, error) {
	if err := party.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.deps.Mappings.FindByParty(ctx, party.Type, party.ID)
	switch {
	case err == nil && !force:
		return existing, nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}

	payload, err := accounting.ContactFromParty(party)
	if err != nil {
		return nil, err
	}

	ref, err := s.deps.Client.CreateContact(ctx, payload)
	if err != nil {
		s.deps.Metrics.RecordSyncFailure(ctx, string(invoicing.SyncEntityContact), string(invoicing.SyncActionCreate))
		s.logger.Warn("Creating platform contact failed",
			zap.String("party_type", string(party.Type)),
			zap.String("party_id", party.ID.String()),
			zap.Error(err))
		appendSyncLog(ctx, s.deps.SyncLog, s.logger,
			invoicing.NewSyncLogEntry(invoicing.SyncEntityContact, party.ID, invoicing.SyncActionCreate, invoicing.SyncOutcomeFailed, s.deps.Clock.Now()).
				WithError(err).
				WithSnapshots(payload, apiErrorBody(err)))
		return nil, err
	}

	now := s.deps.Clock.Now()
	mapping := existing
	if mapping != nil {
		err = mapping.Remap(ref.ID, now)
	} else {
		mapping, err = invoicing.NewContactMapping(party, ref.ID, now)
	}
	if err != nil {
		return nil, err
	}

	appendSyncLog(ctx, s.deps.SyncLog, s.logger,
		invoicing.NewSyncLogEntry(invoicing.SyncEntityContact, party.ID, invoicing.SyncActionCreate, invoicing.SyncOutcomeSuccess, now).
			WithExternalID(&ref.ID).
			WithSnapshots(payload, ref))

	if err := s.deps.Mappings.Save(ctx, mapping); err != nil {
		s.logger.Error("Platform contact created but mapping not saved",
			zap.String("party_id", party.ID.String()),
			zap.String("external_contact_id", ref.ID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Contact mapped",
		zap.String("party_type", string(party.Type)),
		zap.String("party_id", party.ID.String()),
		zap.String("external_contact_id", ref.ID),
		zap.Bool("forced", force))
	return mapping, nil
}

// EnsureProjectContact links the billable party of a project, its
// organization when it has one and otherwise its client
func (s *ContactSyncService) EnsureProjectContact(ctx context.Context, projectID uuid.UUID, force bool) (*invoicing.ContactMapping, error) {
	parties, err := s.deps.Directory.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	candidates := parties.Candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: project %s has no billable party", invoicing.ErrInvalidParty, projectID)
	}
	return s.EnsureContact(ctx, candidates[0], force)
}

// SearchContacts looks up platform contacts by name or email
func (s *ContactSyncService) SearchContacts(ctx context.Context, filter accounting.ContactFilter) (*accounting.ContactPage, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	if filter.Size <= 0 {
		filter.Size = defaultContactPageSize
	}
	return s.deps.Client.SearchContacts(ctx, filter)
}

// GetContact fetches one platform contact
func (s *ContactSyncService) GetContact(ctx context.Context, id string) (*accounting.Contact, error) {
	if !s.settings.PlatformEnabled {
		return nil, invoicing.ErrPlatformDisabled
	}
	return s.deps.Client.GetContact(ctx, id)
}

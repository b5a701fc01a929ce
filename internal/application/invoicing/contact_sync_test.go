package invoicing

import (
	"context"
	"testing"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testOrganization() invoicing.Party {
	return invoicing.Party{
		Type:             invoicing.PartyTypeOrganization,
		ID:               uuid.New(),
		OrganizationName: "ACME GmbH",
		Email:            "billing@acme.test",
	}
}

func TestContactSyncService_EnsureContact(t *testing.T) {
	t.Run("creates contact and mapping", func(t *testing.T) {
		f := newFixture(t, runTime)
		party := testOrganization()
		f.client.On("CreateContact", mock.Anything,
			mock.MatchedBy(func(p accounting.ContactPayload) bool { return p.Company != nil && p.Company.Name == "ACME GmbH" }),
		).Return(&accounting.ResourceReference{ID: "contact-new"}, nil).Once()

		mapping, err := NewContactSyncService(f.deps, enabledSettings()).EnsureContact(context.Background(), party, false)
		require.NoError(t, err)

		assert.Equal(t, "contact-new", mapping.ExternalContactID)
		assert.Equal(t, "contact-new", f.store.mappings[party.ID].ExternalContactID)

		entries := f.logFor(party.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, invoicing.SyncEntityContact, entries[0].EntityType)
		assert.Equal(t, invoicing.SyncOutcomeSuccess, entries[0].Outcome)
		f.client.AssertExpectations(t)
	})

	t.Run("existing mapping is returned without a call", func(t *testing.T) {
		f := newFixture(t, runTime)
		party := testOrganization()
		existing, err := invoicing.NewContactMapping(party, "contact-old", runTime)
		require.NoError(t, err)
		f.store.mappings[party.ID] = *existing

		mapping, err := NewContactSyncService(f.deps, enabledSettings()).EnsureContact(context.Background(), party, false)
		require.NoError(t, err)
		assert.Equal(t, "contact-old", mapping.ExternalContactID)
		f.client.AssertNotCalled(t, "CreateContact", mock.Anything, mock.Anything)
	})

	t.Run("force remaps existing mapping", func(t *testing.T) {
		f := newFixture(t, runTime)
		party := testOrganization()
		existing, err := invoicing.NewContactMapping(party, "contact-old", runTime)
		require.NoError(t, err)
		f.store.mappings[party.ID] = *existing
		f.client.On("CreateContact", mock.Anything, mock.Anything).
			Return(&accounting.ResourceReference{ID: "contact-new"}, nil)

		mapping, err := NewContactSyncService(f.deps, enabledSettings()).EnsureContact(context.Background(), party, true)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, mapping.ID)
		assert.Equal(t, "contact-new", f.store.mappings[party.ID].ExternalContactID)
	})

	t.Run("platform failure is logged", func(t *testing.T) {
		f := newFixture(t, runTime)
		party := testOrganization()
		f.client.On("CreateContact", mock.Anything, mock.Anything).
			Return(nil, &accounting.APIError{StatusCode: 401, Message: "unauthorized"})

		_, err := NewContactSyncService(f.deps, enabledSettings()).EnsureContact(context.Background(), party, false)
		require.Error(t, err)
		assert.NotContains(t, f.store.mappings, party.ID)

		entries := f.logFor(party.ID)
		require.Len(t, entries, 1)
		assert.Equal(t, invoicing.SyncOutcomeFailed, entries[0].Outcome)
	})

	t.Run("invalid party", func(t *testing.T) {
		f := newFixture(t, runTime)
		_, err := NewContactSyncService(f.deps, enabledSettings()).EnsureContact(context.Background(),
			invoicing.Party{Type: invoicing.PartyTypePerson, ID: uuid.New()}, false)
		assert.ErrorIs(t, err, invoicing.ErrValidation)
	})

	t.Run("platform disabled", func(t *testing.T) {
		f := newFixture(t, runTime)
		_, err := NewContactSyncService(f.deps, DefaultSettings()).EnsureContact(context.Background(), testOrganization(), false)
		assert.ErrorIs(t, err, invoicing.ErrPlatformDisabled)
	})
}

func TestContactSyncService_SearchContactsDefaultsPageSize(t *testing.T) {
	f := newFixture(t, runTime)
	f.client.On("SearchContacts", mock.Anything, accounting.ContactFilter{Name: "ACME", Size: defaultContactPageSize}).
		Return(&accounting.ContactPage{Content: []accounting.Contact{{ID: "c-1"}}}, nil)

	page, err := NewContactSyncService(f.deps, enabledSettings()).SearchContacts(context.Background(), accounting.ContactFilter{Name: "ACME"})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	f.client.AssertExpectations(t)
}

func TestContactSyncService_EnsureProjectContact(t *testing.T) {
	t.Run("links the project organization", func(t *testing.T) {
		f := newFixture(t, runTime)
		projectID := f.addProject("")
		org := f.store.parties[projectID].Organization
		f.client.On("CreateContact", mock.Anything, mock.Anything).
			Return(&accounting.ResourceReference{ID: "contact-org"}, nil).Once()

		mapping, err := NewContactSyncService(f.deps, enabledSettings()).EnsureProjectContact(context.Background(), projectID, false)
		require.NoError(t, err)
		assert.Equal(t, org.ID, mapping.PartyID)
		assert.Equal(t, "contact-org", mapping.ExternalContactID)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t, runTime)
		_, err := NewContactSyncService(f.deps, enabledSettings()).EnsureProjectContact(context.Background(), uuid.New(), false)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("project without parties", func(t *testing.T) {
		f := newFixture(t, runTime)
		projectID := uuid.New()
		f.store.parties[projectID] = invoicing.ProjectParties{ProjectID: projectID}

		_, err := NewContactSyncService(f.deps, enabledSettings()).EnsureProjectContact(context.Background(), projectID, false)
		assert.ErrorIs(t, err, invoicing.ErrInvalidParty)
	})
}

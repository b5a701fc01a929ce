package invoicing

import (
	"context"
	"testing"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (f *fixture) addDraftInvoice(t *testing.T, projectID uuid.UUID) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceInput{
		Number:    "INV-2024-0042",
		Title:     "Consulting",
		LineItems: testLineItems(),
		Currency:  "EUR",
		ProjectID: projectID,
		IssueDate: day(2024, 1, 15),
		CreatedAt: f.clock.Now(),
	})
	require.NoError(t, err)
	f.store.invoices[inv.ID] = *inv
	return inv
}

func TestVoucherPublisher_PublishInvoice(t *testing.T) {
	tests := []struct {
		name       string
		finalize   bool
		wantStatus invoicing.InvoiceStatus
		wantAction invoicing.SyncAction
		wantExt    string
	}{
		{"finalized", true, invoicing.InvoiceStatusSent, invoicing.SyncActionFinalize, accounting.VoucherStatusOpen},
		{"draft", false, invoicing.InvoiceStatusDraft, invoicing.SyncActionCreate, accounting.VoucherStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, runTime)
			projectID := f.addProject("contact-1")
			draft := f.addDraftInvoice(t, projectID)

			f.client.On("CreateInvoice", mock.Anything,
				mock.MatchedBy(func(p accounting.VoucherPayload) bool { return p.Address.ContactID == "contact-1" }),
				tt.finalize,
			).Return(&accounting.ResourceReference{ID: "ext-42", Version: 1}, nil).Once()

			inv, err := NewVoucherPublisher(f.deps, enabledSettings()).PublishInvoice(context.Background(), draft.ID, tt.finalize)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, inv.Status)
			require.NotNil(t, inv.ExternalID)
			assert.Equal(t, "ext-42", *inv.ExternalID)
			require.NotNil(t, inv.ExternalStatus)
			assert.Equal(t, tt.wantExt, *inv.ExternalStatus)

			stored := f.invoice(draft.ID)
			assert.Equal(t, tt.wantStatus, stored.Status)
			require.NotNil(t, stored.SyncedAt)

			entries := f.logFor(draft.ID)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantAction, entries[0].Action)
			assert.Equal(t, invoicing.SyncOutcomeSuccess, entries[0].Outcome)
			assert.NotEmpty(t, entries[0].RequestSnapshot)
			f.client.AssertExpectations(t)
		})
	}
}

func TestVoucherPublisher_FallsBackToClientContact(t *testing.T) {
	f := newFixture(t, runTime)
	projectID := f.addProject("")
	client := invoicing.Party{Type: invoicing.PartyTypePerson, ID: uuid.New(), FirstName: "Erika", LastName: "Mustermann"}
	parties := f.store.parties[projectID]
	parties.Client = &client
	f.store.parties[projectID] = parties
	mapping, err := invoicing.NewContactMapping(client, "contact-person", runTime)
	require.NoError(t, err)
	f.store.mappings[client.ID] = *mapping

	draft := f.addDraftInvoice(t, projectID)
	f.client.On("CreateInvoice", mock.Anything,
		mock.MatchedBy(func(p accounting.VoucherPayload) bool { return p.Address.ContactID == "contact-person" }),
		true,
	).Return(&accounting.ResourceReference{ID: "ext-1"}, nil)

	_, err = NewVoucherPublisher(f.deps, enabledSettings()).PublishInvoice(context.Background(), draft.ID, true)
	require.NoError(t, err)
	f.client.AssertExpectations(t)
}

func TestVoucherPublisher_Rejections(t *testing.T) {
	t.Run("platform disabled", func(t *testing.T) {
		f := newFixture(t, runTime)
		draft := f.addDraftInvoice(t, f.addProject("contact-1"))

		_, err := NewVoucherPublisher(f.deps, DefaultSettings()).PublishInvoice(context.Background(), draft.ID, true)
		assert.ErrorIs(t, err, invoicing.ErrPlatformDisabled)
	})

	t.Run("already published", func(t *testing.T) {
		f := newFixture(t, runTime)
		inv := f.addPublishedInvoice(t, "INV-2024-0001", "ext-1")

		_, err := NewVoucherPublisher(f.deps, enabledSettings()).PublishInvoice(context.Background(), inv.ID, true)
		assert.ErrorIs(t, err, invoicing.ErrAlreadyPublished)
	})

	t.Run("no contact mapping", func(t *testing.T) {
		f := newFixture(t, runTime)
		draft := f.addDraftInvoice(t, f.addProject(""))

		_, err := NewVoucherPublisher(f.deps, enabledSettings()).PublishInvoice(context.Background(), draft.ID, true)
		assert.ErrorIs(t, err, invoicing.ErrContactNotMapped)
		assert.ErrorIs(t, err, invoicing.ErrValidation)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t, runTime)
		draft := f.addDraftInvoice(t, uuid.New())

		_, err := NewVoucherPublisher(f.deps, enabledSettings()).PublishInvoice(context.Background(), draft.ID, true)
		assert.ErrorIs(t, err, invoicing.ErrContactNotMapped)
	})
}

func TestVoucherPublisher_APIErrorIsLogged(t *testing.T) {
	f := newFixture(t, runTime)
	draft := f.addDraftInvoice(t, f.addProject("contact-1"))
	apiErr := &accounting.APIError{StatusCode: 406, Message: "Validation failed", Body: `{"IssueList":[{"i18nKey":"missing_entity"}]}`}
	f.client.On("CreateInvoice", mock.Anything, mock.Anything, true).Return(nil, apiErr)

	inv, err := NewVoucherPublisher(f.deps, enabledSettings()).PublishInvoice(context.Background(), draft.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, invoicing.ErrExternalAPI)
	assert.Equal(t, invoicing.InvoiceStatusDraft, inv.Status)
	assert.Nil(t, f.invoice(draft.ID).ExternalID)

	entries := f.logFor(draft.ID)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, invoicing.SyncOutcomeFailed, entry.Outcome)
	assert.Equal(t, invoicing.SyncActionFinalize, entry.Action)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "Validation failed")
	assert.NotEmpty(t, entry.RequestSnapshot)
	assert.JSONEq(t, apiErr.Body, string(entry.ResponseSnapshot))
}

func TestVoucherPublisher_PublishQuotation(t *testing.T) {
	f := newFixture(t, runTime)
	projectID := f.addProject("contact-1")
	q, err := invoicing.NewQuotation("QUO-2024-0001", "Relaunch", projectID, testLineItems(), "EUR", day(2024, 1, 15), runTime)
	require.NoError(t, err)
	f.store.quotations[q.ID] = *q

	f.client.On("CreateQuotation", mock.Anything, mock.Anything, true).
		Return(&accounting.ResourceReference{ID: "ext-q"}, nil)

	published, err := NewVoucherPublisher(f.deps, enabledSettings()).PublishQuotation(context.Background(), q.ID, true)
	require.NoError(t, err)

	assert.Equal(t, invoicing.QuotationStatusSent, published.Status)
	stored := f.store.quotations[q.ID]
	require.NotNil(t, stored.ExternalID)
	assert.Equal(t, "ext-q", *stored.ExternalID)

	entries := f.logFor(q.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, invoicing.SyncEntityQuotation, entries[0].EntityType)
}

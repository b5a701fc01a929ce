package invoicing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
	"github.com/erp/billsync/internal/infrastructure/accounting"
	"github.com/erp/billsync/internal/infrastructure/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Accounting client mock
// ---------------------------------------------------------------------------

type mockAccountingClient struct {
	mock.Mock
}

func (m *mockAccountingClient) CreateContact(ctx context.Context, payload accounting.ContactPayload) (*accounting.ResourceReference, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.ResourceReference), args.Error(1)
}

func (m *mockAccountingClient) SearchContacts(ctx context.Context, filter accounting.ContactFilter) (*accounting.ContactPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.ContactPage), args.Error(1)
}

func (m *mockAccountingClient) GetContact(ctx context.Context, id string) (*accounting.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Contact), args.Error(1)
}

func (m *mockAccountingClient) CreateInvoice(ctx context.Context, payload accounting.VoucherPayload, finalize bool) (*accounting.ResourceReference, error) {
	args := m.Called(ctx, payload, finalize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.ResourceReference), args.Error(1)
}

func (m *mockAccountingClient) GetInvoice(ctx context.Context, id string) (*accounting.Voucher, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Voucher), args.Error(1)
}

func (m *mockAccountingClient) GetInvoiceDocument(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockAccountingClient) CreateQuotation(ctx context.Context, payload accounting.VoucherPayload, finalize bool) (*accounting.ResourceReference, error) {
	args := m.Called(ctx, payload, finalize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.ResourceReference), args.Error(1)
}

func (m *mockAccountingClient) GetQuotation(ctx context.Context, id string) (*accounting.Voucher, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Voucher), args.Error(1)
}

func (m *mockAccountingClient) GetQuotationDocument(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockAccountingClient) ListRecurringTemplates(ctx context.Context, page, size int) (*accounting.RecurringTemplatePage, error) {
	args := m.Called(ctx, page, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.RecurringTemplatePage), args.Error(1)
}

func (m *mockAccountingClient) GetRecurringTemplate(ctx context.Context, id string) (*accounting.RecurringTemplate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.RecurringTemplate), args.Error(1)
}

func (m *mockAccountingClient) TestConnection(ctx context.Context) (*accounting.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounting.Profile), args.Error(1)
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryStore struct {
	mu         sync.Mutex
	schedules  map[uuid.UUID]invoicing.RecurringSchedule
	invoices   map[uuid.UUID]invoicing.Invoice
	quotations map[uuid.UUID]invoicing.Quotation
	mappings   map[uuid.UUID]invoicing.ContactMapping
	parties    map[uuid.UUID]invoicing.ProjectParties
	syncLog    []invoicing.SyncLogEntry
	history    []invoicing.GenerationRecord
	sequences  map[string]int64
	queued     []invoicing.Notification

	saveGeneratedErr map[string]error
	enqueueErr       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		schedules:        make(map[uuid.UUID]invoicing.RecurringSchedule),
		invoices:         make(map[uuid.UUID]invoicing.Invoice),
		quotations:       make(map[uuid.UUID]invoicing.Quotation),
		mappings:         make(map[uuid.UUID]invoicing.ContactMapping),
		parties:          make(map[uuid.UUID]invoicing.ProjectParties),
		sequences:        make(map[string]int64),
		saveGeneratedErr: make(map[string]error),
	}
}

// schedule repository

type memorySchedules struct{ s *memoryStore }

func (r memorySchedules) FindDue(_ context.Context, asOf time.Time) ([]invoicing.RecurringSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []invoicing.RecurringSchedule
	for _, sched := range r.s.schedules {
		if sched.IsDue(asOf) {
			due = append(due, sched)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextInvoiceDate.Equal(due[j].NextInvoiceDate) {
			return due[i].Title < due[j].Title
		}
		return due[i].NextInvoiceDate.Before(due[j].NextInvoiceDate)
	})
	return due, nil
}

func (r memorySchedules) FindByID(_ context.Context, id uuid.UUID) (*invoicing.RecurringSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sched, ok := r.s.schedules[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &sched, nil
}

func (r memorySchedules) Save(_ context.Context, schedule *invoicing.RecurringSchedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.schedules[schedule.ID] = *schedule
	return nil
}

// invoice repository

type memoryInvoices struct{ s *memoryStore }

func (r memoryInvoices) FindByID(_ context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &inv, nil
}

func (r memoryInvoices) FindPendingSync(_ context.Context) ([]invoicing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []invoicing.Invoice
	for _, inv := range r.s.invoices {
		if inv.IsPublished() && !inv.Status.IsTerminal() {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r memoryInvoices) Save(_ context.Context, invoice *invoicing.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[invoice.ID]; !ok {
		return shared.ErrNotFound
	}
	r.s.invoices[invoice.ID] = *invoice
	return nil
}

func (r memoryInvoices) SaveGenerated(_ context.Context, invoice *invoicing.Invoice, schedule *invoicing.RecurringSchedule, record invoicing.GenerationRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.saveGeneratedErr[schedule.Title]; err != nil {
		return err
	}
	for _, existing := range r.s.invoices {
		if existing.Number == invoice.Number {
			return errors.New("duplicate invoice number")
		}
	}
	r.s.invoices[invoice.ID] = *invoice
	r.s.history = append(r.s.history, record)
	r.s.schedules[schedule.ID] = *schedule
	return nil
}

// quotation repository

type memoryQuotations struct{ s *memoryStore }

func (r memoryQuotations) FindByID(_ context.Context, id uuid.UUID) (*invoicing.Quotation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &q, nil
}

func (r memoryQuotations) FindPendingSync(_ context.Context) ([]invoicing.Quotation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []invoicing.Quotation
	for _, q := range r.s.quotations {
		if q.IsPublished() && !q.Status.IsTerminal() {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r memoryQuotations) Save(_ context.Context, q *invoicing.Quotation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.quotations[q.ID] = *q
	return nil
}

// contact mappings and project directory

type memoryMappings struct{ s *memoryStore }

func (r memoryMappings) FindByParty(_ context.Context, partyType invoicing.PartyType, partyID uuid.UUID) (*invoicing.ContactMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mappings[partyID]
	if !ok || m.PartyType != partyType {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (r memoryMappings) Save(_ context.Context, mapping *invoicing.ContactMapping) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.mappings[mapping.PartyID] = *mapping
	return nil
}

type memoryDirectory struct{ s *memoryStore }

func (r memoryDirectory) FindByProject(_ context.Context, projectID uuid.UUID) (*invoicing.ProjectParties, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parties[projectID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

// sync log, history, sequence, queue

type memorySyncLog struct{ s *memoryStore }

func (r memorySyncLog) Append(_ context.Context, entry *invoicing.SyncLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.syncLog = append(r.s.syncLog, *entry)
	return nil
}

func (r memorySyncLog) FindByEntity(_ context.Context, entityType invoicing.SyncEntityType, entityID uuid.UUID) ([]invoicing.SyncLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []invoicing.SyncLogEntry
	for _, e := range r.s.syncLog {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memoryHistory struct{ s *memoryStore }

func (r memoryHistory) FindBySchedule(_ context.Context, scheduleID uuid.UUID) ([]invoicing.GenerationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []invoicing.GenerationRecord
	for _, rec := range r.s.history {
		if rec.ScheduleID == scheduleID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memorySequence struct{ s *memoryStore }

func (r memorySequence) Next(_ context.Context, prefix string, year int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := fmt.Sprintf("%s-%d", prefix, year)
	r.s.sequences[key]++
	return r.s.sequences[key], nil
}

type memoryQueue struct{ s *memoryStore }

func (r memoryQueue) Enqueue(_ context.Context, n invoicing.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.enqueueErr != nil {
		return r.s.enqueueErr
	}
	r.s.queued = append(r.s.queued, n)
	return nil
}

// ---------------------------------------------------------------------------
// Fixture helpers
// ---------------------------------------------------------------------------

type fixture struct {
	store  *memoryStore
	client *mockAccountingClient
	clock  *clock.Fake
	deps   Deps
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := newMemoryStore()
	client := new(mockAccountingClient)
	fake := clock.NewFake(now)
	return &fixture{
		store:  store,
		client: client,
		clock:  fake,
		deps: Deps{
			Client:        client,
			Schedules:     memorySchedules{store},
			Invoices:      memoryInvoices{store},
			Quotations:    memoryQuotations{store},
			Mappings:      memoryMappings{store},
			Directory:     memoryDirectory{store},
			SyncLog:       memorySyncLog{store},
			History:       memoryHistory{store},
			Sequence:      memorySequence{store},
			Notifications: memoryQueue{store},
			Clock:         fake,
			Logger:        zap.NewNop(),
		},
	}
}

func enabledSettings() Settings {
	s := DefaultSettings()
	s.PlatformEnabled = true
	return s
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// addProject registers a project whose organization is mapped to contactID.
// An empty contactID leaves the organization unmapped.
func (f *fixture) addProject(contactID string, recipients ...string) uuid.UUID {
	projectID := uuid.New()
	org := invoicing.Party{
		Type:             invoicing.PartyTypeOrganization,
		ID:               uuid.New(),
		OrganizationName: "ACME GmbH",
		Email:            "billing@acme.test",
	}
	f.store.parties[projectID] = invoicing.ProjectParties{
		ProjectID:    projectID,
		Organization: &org,
		Recipients:   recipients,
	}
	if contactID != "" {
		mapping, _ := invoicing.NewContactMapping(org, contactID, f.clock.Now())
		f.store.mappings[org.ID] = *mapping
	}
	return projectID
}

func (f *fixture) addSchedule(title string, projectID *uuid.UUID, next time.Time, mutate ...func(*invoicing.RecurringSchedule)) *invoicing.RecurringSchedule {
	rate := decimal.NewFromInt(19)
	s := invoicing.RecurringSchedule{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(f.clock.Now()),
		Title:             title,
		NetAmount:         decimal.NewFromInt(100),
		TaxRate:           &rate,
		Currency:          "EUR",
		ProjectID:         projectID,
		IntervalType:      invoicing.IntervalMonthly,
		IntervalValue:     1,
		NextInvoiceDate:   next,
		IsActive:          true,
	}
	for _, m := range mutate {
		m(&s)
	}
	f.store.schedules[s.ID] = s
	return &s
}

func (f *fixture) schedule(id uuid.UUID) invoicing.RecurringSchedule {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.schedules[id]
}

func (f *fixture) invoice(id uuid.UUID) invoicing.Invoice {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.invoices[id]
}

func (f *fixture) logFor(id uuid.UUID) []invoicing.SyncLogEntry {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []invoicing.SyncLogEntry
	for _, e := range f.store.syncLog {
		if e.EntityID == id {
			out = append(out, e)
		}
	}
	return out
}

package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutcomeKind classifies what happened to one schedule in a generation run
type OutcomeKind string

const (
	// OutcomeGenerated: invoice created, and pushed when the schedule asks for it
	OutcomeGenerated OutcomeKind = "generated"
	// OutcomeGeneratedNotPushed: invoice created locally, push to the platform failed
	OutcomeGeneratedNotPushed OutcomeKind = "generated_not_pushed"
	// OutcomeDeactivated: end date passed, schedule switched off without an invoice
	OutcomeDeactivated OutcomeKind = "deactivated"
	// OutcomeFailed: no invoice was created
	OutcomeFailed OutcomeKind = "failed"
)

// ScheduleOutcome is the result of processing one schedule
type ScheduleOutcome struct {
	ScheduleID          uuid.UUID
	Title               string
	Kind                OutcomeKind
	InvoiceID           *uuid.UUID
	InvoiceNumber       string
	ExternalID          string
	NotificationsQueued int
	// Reason explains deactivations and failures
	Reason string

	err error
}

// Err returns the error behind a failed or partial outcome
func (o ScheduleOutcome) Err() error {
	return o.err
}

// GenerationSummary is the immutable result of one generation run
type GenerationSummary struct {
	outcomes []ScheduleOutcome
}

func newGenerationSummary(outcomes []ScheduleOutcome) GenerationSummary {
	return GenerationSummary{outcomes: append([]ScheduleOutcome(nil), outcomes...)}
}

// Outcomes returns a copy of the per-schedule outcomes in processing order
func (s GenerationSummary) Outcomes() []ScheduleOutcome {
	return append([]ScheduleOutcome(nil), s.outcomes...)
}

// Processed is the number of due schedules handled
func (s GenerationSummary) Processed() int {
	return len(s.outcomes)
}

// SuccessCount counts schedules that generated (and, if requested, pushed) an invoice
func (s GenerationSummary) SuccessCount() int {
	return s.count(OutcomeGenerated)
}

// FailCount counts failures, including invoices that were created but not pushed
func (s GenerationSummary) FailCount() int {
	return s.count(OutcomeFailed) + s.count(OutcomeGeneratedNotPushed)
}

// DeactivatedCount counts schedules switched off because their end date passed
func (s GenerationSummary) DeactivatedCount() int {
	return s.count(OutcomeDeactivated)
}

func (s GenerationSummary) count(kind OutcomeKind) int {
	n := 0
	for _, o := range s.outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// RecurringInvoiceGenerator creates invoices for due recurring schedules
type RecurringInvoiceGenerator struct {
	deps      Deps
	settings  Settings
	publisher *VoucherPublisher
	notifier  *InvoiceNotifier
	logger    *zap.Logger
}

// NewRecurringInvoiceGenerator creates a new RecurringInvoiceGenerator
func NewRecurringInvoiceGenerator(deps Deps, settings Settings) *RecurringInvoiceGenerator {
	deps = deps.withDefaults()
	settings = settings.withDefaults()
	return &RecurringInvoiceGenerator{
		deps:      deps,
		settings:  settings,
		publisher: NewVoucherPublisher(deps, settings),
		notifier:  NewInvoiceNotifier(deps, settings),
		logger:    deps.Logger.Named("recurring_generator"),
	}
}

// Run processes every active schedule due today, one at a time. A failing
// schedule never stops the batch. The returned error is set only when the due
// schedules could not be loaded or ctx ended; the summary then covers the
// schedules handled so far.
func (g *RecurringInvoiceGenerator) Run(ctx context.Context) (GenerationSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "generate_recurring")
	defer span.End()

	started := g.deps.Clock.Now()
	today := invoicing.CalendarDate(started, g.settings.Location)

	schedules, err := g.deps.Schedules.FindDue(ctx, today)
	if err != nil {
		telemetry.RecordError(span, err)
		g.logger.Error("Failed to load due schedules", zap.Error(err))
		g.deps.Metrics.RecordJobRun(ctx, "generate", g.deps.Clock.Now().Sub(started).Seconds(), true)
		return GenerationSummary{}, err
	}

	g.logger.Info("Starting recurring invoice generation",
		zap.String("today", today.Format(time.DateOnly)),
		zap.Int("due_schedules", len(schedules)))

	outcomes := make([]ScheduleOutcome, 0, len(schedules))
	var runErr error
	for i := range schedules {
		if err := ctx.Err(); err != nil {
			runErr = err
			g.logger.Warn("Generation run interrupted",
				zap.Int("remaining", len(schedules)-i),
				zap.Error(err))
			break
		}

		schedule := &schedules[i]
		if !schedule.IsDue(today) {
			continue
		}
		outcome := g.processSchedule(ctx, schedule, today)
		g.logOutcome(outcome)
		outcomes = append(outcomes, outcome)
	}

	summary := newGenerationSummary(outcomes)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrProcessed, summary.Processed(),
		telemetry.SpanAttrFailed, summary.FailCount(),
	)
	if runErr != nil {
		telemetry.RecordError(span, runErr)
	}
	g.deps.Metrics.RecordJobRun(ctx, "generate", g.deps.Clock.Now().Sub(started).Seconds(), runErr != nil)

	g.logger.Info("Recurring invoice generation completed",
		zap.Int("processed", summary.Processed()),
		zap.Int("success_count", summary.SuccessCount()),
		zap.Int("fail_count", summary.FailCount()),
		zap.Int("deactivated", summary.DeactivatedCount()))

	return summary, runErr
}

func (g *RecurringInvoiceGenerator) processSchedule(ctx context.Context, schedule *invoicing.RecurringSchedule, today time.Time) ScheduleOutcome {
	outcome := ScheduleOutcome{ScheduleID: schedule.ID, Title: schedule.Title}
	now := g.deps.Clock.Now()

	if schedule.HasEnded(today) {
		schedule.Deactivate(now)
		if err := g.deps.Schedules.Save(ctx, schedule); err != nil {
			return failed(outcome, err)
		}
		g.deps.Metrics.RecordScheduleDeactivated(ctx)
		telemetry.AddEvent(telemetry.SpanFromContext(ctx), "schedule_deactivated",
			telemetry.SpanAttrScheduleID, schedule.ID.String())
		outcome.Kind = OutcomeDeactivated
		outcome.Reason = invoicing.ErrScheduleExpired.Error()
		return outcome
	}

	if schedule.ProjectID == nil {
		return failed(outcome, invoicing.ErrMissingProject)
	}
	if err := schedule.Validate(); err != nil {
		return failed(outcome, err)
	}
	items, err := schedule.ResolveLineItems()
	if err != nil {
		return failed(outcome, err)
	}

	year := today.Year()
	seq, err := g.deps.Sequence.Next(ctx, g.settings.InvoicePrefix, year)
	if err != nil {
		return failed(outcome, err)
	}

	scheduleID := schedule.ID
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceInput{
		Number:      invoicing.FormatDocumentNumber(g.settings.InvoicePrefix, year, seq),
		Title:       schedule.Title,
		Description: schedule.Description,
		LineItems:   items,
		Currency:    schedule.Currency,
		ProjectID:   *schedule.ProjectID,
		ScheduleID:  &scheduleID,
		IssueDate:   today,
		CreatedAt:   now,
	})
	if err != nil {
		return failed(outcome, err)
	}

	// The record captures the billing date before the schedule advances
	record := invoicing.NewGenerationRecord(schedule, inv, now)
	schedule.RecordGeneration(now)
	if err := g.deps.Invoices.SaveGenerated(ctx, inv, schedule, record); err != nil {
		return failed(outcome, err)
	}
	g.deps.Metrics.RecordInvoiceGenerated(ctx, inv.Currency)

	invoiceID := inv.ID
	outcome.InvoiceID = &invoiceID
	outcome.InvoiceNumber = inv.Number
	outcome.Kind = OutcomeGenerated

	if g.settings.PlatformEnabled && schedule.AutoSend {
		g.push(ctx, inv, &outcome)
	}

	if schedule.SendNotification {
		queued, err := g.notifier.NotifyGenerated(ctx, inv)
		outcome.NotificationsQueued = queued
		if err != nil {
			g.logger.Warn("Invoice notification failed",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("invoice_number", inv.Number),
				zap.Error(err))
		}
	}

	return outcome
}

// push sends a freshly generated invoice to the platform. Without a contact
// mapping for the project the invoice stays local and the outcome remains
// generated, carrying the reason.
func (g *RecurringInvoiceGenerator) push(ctx context.Context, inv *invoicing.Invoice, outcome *ScheduleOutcome) {
	contactID, err := g.publisher.resolveContact(ctx, inv.ProjectID)
	if errors.Is(err, invoicing.ErrContactNotMapped) {
		outcome.Reason = err.Error()
		return
	}
	if err == nil {
		err = g.publisher.sendInvoice(ctx, inv, contactID, true)
	}
	if err != nil {
		outcome.Kind = OutcomeGeneratedNotPushed
		outcome.Reason = err.Error()
		outcome.err = err
		return
	}
	if inv.ExternalID != nil {
		outcome.ExternalID = *inv.ExternalID
	}
}

// History returns the invoices generated from a schedule, oldest first
func (g *RecurringInvoiceGenerator) History(ctx context.Context, scheduleID uuid.UUID) ([]invoicing.GenerationRecord, error) {
	if _, err := g.deps.Schedules.FindByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return g.deps.History.FindBySchedule(ctx, scheduleID)
}

func failed(outcome ScheduleOutcome, err error) ScheduleOutcome {
	outcome.Kind = OutcomeFailed
	outcome.Reason = err.Error()
	outcome.err = err
	return outcome
}

func (g *RecurringInvoiceGenerator) logOutcome(o ScheduleOutcome) {
	fields := []zap.Field{
		zap.String("schedule_id", o.ScheduleID.String()),
		zap.String("outcome", string(o.Kind)),
	}
	if o.InvoiceNumber != "" {
		fields = append(fields, zap.String("invoice_number", o.InvoiceNumber))
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}

	switch o.Kind {
	case OutcomeFailed:
		if errors.Is(o.err, invoicing.ErrValidation) {
			g.logger.Warn("Schedule skipped", fields...)
			return
		}
		g.logger.Error("Schedule failed", fields...)
	case OutcomeGeneratedNotPushed:
		g.logger.Warn("Invoice generated but not pushed", fields...)
	default:
		g.logger.Info("Schedule processed", fields...)
	}
}

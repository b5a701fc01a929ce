package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// InvoiceNotifier queues one message per recipient when an invoice was generated
type InvoiceNotifier struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger
}

// NewInvoiceNotifier creates a new InvoiceNotifier
func NewInvoiceNotifier(deps Deps, settings Settings) *InvoiceNotifier {
	deps = deps.withDefaults()
	return &InvoiceNotifier{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   deps.Logger.Named("invoice_notifier"),
	}
}

// NotifyGenerated enqueues the invoice notification for every project recipient.
// It returns the number of queued messages; errors wrap invoicing.ErrNotification.
func (n *InvoiceNotifier) NotifyGenerated(ctx context.Context, inv *invoicing.Invoice) (int, error) {
	if n.deps.Notifications == nil {
		return 0, fmt.Errorf("%w: no notification queue configured", invoicing.ErrNotification)
	}

	recipients, err := n.recipients(ctx, inv.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("%w: resolve recipients: %w", invoicing.ErrNotification, err)
	}
	if len(recipients) == 0 {
		n.logger.Debug("No notification recipients", zap.String("project_id", inv.ProjectID.String()))
		return 0, nil
	}

	subject, body := RenderInvoiceNotification(inv, n.settings.Locale)
	now := n.deps.Clock.Now()

	var errs []error
	queued := 0
	for _, recipient := range recipients {
		msg := invoicing.Notification{
			ID:            uuid.New(),
			Kind:          invoicing.NotificationKindInvoiceGenerated,
			Recipient:     recipient,
			Subject:       subject,
			Body:          body,
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			ProjectID:     inv.ProjectID,
			CreatedAt:     now,
		}
		if err := n.deps.Notifications.Enqueue(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", recipient, err))
			continue
		}
		queued++
	}

	if len(errs) > 0 {
		return queued, fmt.Errorf("%w: %w", invoicing.ErrNotification, errors.Join(errs...))
	}
	return queued, nil
}

// recipients returns the project's notification addresses, or the party
// emails when none are configured
func (n *InvoiceNotifier) recipients(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	parties, err := n.deps.Directory.FindByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	candidates := parties.Recipients
	if len(candidates) == 0 {
		for _, party := range parties.Candidates() {
			candidates = append(candidates, party.Email)
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, addr := range candidates {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

// RenderInvoiceNotification builds the subject and plain text body of an
// invoice notification, formatting amounts for locale
func RenderInvoiceNotification(inv *invoicing.Invoice, locale language.Tag) (subject, body string) {
	p := message.NewPrinter(locale)

	subject = fmt.Sprintf("Invoice %s", inv.Number)
	if inv.Title != "" {
		subject += ": " + inv.Title
	}

	code := inv.Currency
	if unit, err := currency.ParseISO(inv.Currency); err == nil {
		code = unit.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Invoice %s has been issued.\n\n", inv.Number)
	fmt.Fprintf(&b, "Net:   %s %s\n", formatAmount(p, inv.NetAmount), code)
	fmt.Fprintf(&b, "Tax:   %s %s\n", formatAmount(p, inv.TaxAmount), code)
	fmt.Fprintf(&b, "Total: %s %s\n", formatAmount(p, inv.TotalAmount), code)
	fmt.Fprintf(&b, "Issued: %s\n", inv.IssueDate.Format(time.DateOnly))
	fmt.Fprintf(&b, "Due:    %s\n", inv.DueDate.Format(time.DateOnly))
	return subject, b.String()
}

func formatAmount(p *message.Printer, amount decimal.Decimal) string {
	return p.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
}

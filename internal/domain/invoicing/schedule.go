package invoicing

import (
	"time"

	"github.com/erp/billsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// IntervalType
// ---------------------------------------------------------------------------

// IntervalType is the calendar cadence of a recurring billing schedule
type IntervalType string

const (
	// IntervalMonthly advances by interval_value months
	IntervalMonthly IntervalType = "monthly"
	// IntervalQuarterly advances by 3 × interval_value months
	IntervalQuarterly IntervalType = "quarterly"
	// IntervalYearly advances by interval_value years
	IntervalYearly IntervalType = "yearly"
)

// IsValid returns true if the interval type is known
func (t IntervalType) IsValid() bool {
	switch t {
	case IntervalMonthly, IntervalQuarterly, IntervalYearly:
		return true
	default:
		return false
	}
}

// String returns the string representation of IntervalType
func (t IntervalType) String() string {
	return string(t)
}

// months converts value cycles of this interval into calendar months
func (t IntervalType) months(value int) int {
	switch t {
	case IntervalQuarterly:
		return 3 * value
	case IntervalYearly:
		return 12 * value
	default:
		return value
	}
}

// AdvanceDate moves date forward by value cycles of interval. When the target
// month is shorter than the source day, the result is clamped to the last day
// of the target month (Jan 31 + 1 quarter = Apr 30).
func AdvanceDate(date time.Time, interval IntervalType, value int) time.Time {
	return AddMonthsClamped(date, interval.months(value))
}

// AddMonthsClamped adds months to t without overflowing into the following month
func AddMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// StartOfDay truncates t to midnight in loc
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// CalendarDate returns the calendar day of t in loc as midnight UTC.
// Schedule and invoice dates are stored as dates, so all comparisons use this form.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// RecurringSchedule
// ---------------------------------------------------------------------------

// RecurringSchedule is an operator-defined policy for generating invoices at a
// fixed calendar cadence. It carries either structured line items or a flat
// net amount with a tax rate.
type RecurringSchedule struct {
	shared.BaseAggregateRoot
	Title       string
	Description string

	// Flat pricing, used when LineItems is empty
	NetAmount decimal.Decimal
	TaxRate   *decimal.Decimal

	LineItems []LineItem
	Currency  string
	ProjectID *uuid.UUID

	IntervalType    IntervalType
	IntervalValue   int
	NextInvoiceDate time.Time
	EndDate         *time.Time

	IsActive         bool
	AutoSend         bool
	SendNotification bool

	InvoicesGenerated int
	LastGeneratedAt   *time.Time
	CreatedBy         *uuid.UUID
}

// Validate checks the cadence definition
func (s *RecurringSchedule) Validate() error {
	if !s.IntervalType.IsValid() || s.IntervalValue <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// IsDue reports whether the schedule should be processed on today (midnight)
func (s *RecurringSchedule) IsDue(today time.Time) bool {
	return s.IsActive && !s.NextInvoiceDate.After(today)
}

// HasEnded reports whether the end date lies strictly before today
func (s *RecurringSchedule) HasEnded(today time.Time) bool {
	return s.EndDate != nil && s.EndDate.Before(today)
}

// Deactivate stops further generation
func (s *RecurringSchedule) Deactivate(now time.Time) {
	s.IsActive = false
	s.UpdatedAt = now
}

// ResolveLineItems returns the structured line items, or a single line
// synthesized from the flat net amount and tax rate (19% when unset).
func (s *RecurringSchedule) ResolveLineItems() ([]LineItem, error) {
	items := s.LineItems
	if len(items) == 0 {
		rate := DefaultTaxRate
		if s.TaxRate != nil {
			rate = *s.TaxRate
		}
		items = []LineItem{{
			Name:        s.Title,
			Description: s.Description,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   s.NetAmount,
			TaxRate:     rate,
		}}
	}
	if err := validateLineItems(items); err != nil {
		return nil, err
	}
	return cloneLineItems(items), nil
}

// FollowingInvoiceDate returns the date after NextInvoiceDate per the cadence
func (s *RecurringSchedule) FollowingInvoiceDate() time.Time {
	return AdvanceDate(s.NextInvoiceDate, s.IntervalType, s.IntervalValue)
}

// RecordGeneration advances the schedule by one cycle after an invoice was created
func (s *RecurringSchedule) RecordGeneration(now time.Time) {
	s.NextInvoiceDate = s.FollowingInvoiceDate()
	s.InvoicesGenerated++
	s.LastGeneratedAt = &now
	s.UpdatedAt = now
}

package invoicing

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// Category errors. Every error produced by this package and by the adapters
// that serve it wraps exactly one of these so callers can classify with errors.Is.
var (
	// ErrAuthentication rejects a whole trigger invocation (bad or missing shared secret)
	ErrAuthentication = errors.New("invoicing: authentication failed")
	// ErrValidation skips a single entity with a recorded reason
	ErrValidation = errors.New("invoicing: validation failed")
	// ErrExternalAPI is a non-2xx or transport failure talking to the accounting platform
	ErrExternalAPI = errors.New("invoicing: external accounting api error")
	// ErrPersistence is a local storage failure
	ErrPersistence = errors.New("invoicing: persistence error")
	// ErrNotification is a failure enqueueing a recipient message
	ErrNotification = errors.New("invoicing: notification error")
)

// Specific errors
var (
	ErrMissingProject    = fmt.Errorf("%w: schedule has no project reference", ErrValidation)
	ErrContactNotMapped  = fmt.Errorf("%w: no contact mapping for project party", ErrValidation)
	ErrInvalidTaxRate    = fmt.Errorf("%w: tax rate must be one of 0, 7 or 19 percent", ErrValidation)
	ErrInvalidInterval   = fmt.Errorf("%w: invalid billing interval", ErrValidation)
	ErrNoLineItems       = fmt.Errorf("%w: at least one line item is required", ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: line item quantity must be positive", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrValidation)
	ErrAlreadyPublished  = fmt.Errorf("%w: voucher already exists on the accounting platform", ErrValidation)
	ErrNotPublished      = fmt.Errorf("%w: voucher has no external id", ErrValidation)
	ErrMappingExists     = fmt.Errorf("%w: contact mapping already exists for party", ErrValidation)
	ErrInvalidParty      = fmt.Errorf("%w: party needs an organization name or a person name", ErrValidation)
	ErrInvalidExternalID = fmt.Errorf("%w: external contact id is required", ErrValidation)
	ErrPlatformDisabled  = fmt.Errorf("%w: accounting platform is disabled", ErrValidation)
	ErrScheduleExpired   = fmt.Errorf("%w: schedule end date has passed", ErrValidation)
)

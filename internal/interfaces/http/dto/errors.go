package dto

import (
	"errors"
	"net/http"

	"github.com/erp/billsync/internal/domain/invoicing"
	"github.com/erp/billsync/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>[_<DESCRIPTION>]

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is used when a request or entity fails validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the shared secret is missing or wrong
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeRateLimited is used when a client sends too many requests
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used when a job run is already in progress
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInvalidState is used when an operation is invalid for the voucher's state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Accounting platform error codes
const (
	// ErrCodeExternalAPI is used when the accounting platform rejected a call
	ErrCodeExternalAPI = "ERR_EXTERNAL_API"
	// ErrCodePlatformDisabled is used when the accounting integration is switched off
	ErrCodePlatformDisabled = "ERR_PLATFORM_DISABLED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeRateLimited:  http.StatusTooManyRequests,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodeExternalAPI:      http.StatusBadGateway,
	ErrCodePlatformDisabled: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorCode classifies err into an API error code. Specific sentinels are
// checked before the category they wrap.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, invoicing.ErrAuthentication):
		return ErrCodeUnauthorized
	case errors.Is(err, shared.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, invoicing.ErrPlatformDisabled):
		return ErrCodePlatformDisabled
	case errors.Is(err, invoicing.ErrAlreadyPublished),
		errors.Is(err, invoicing.ErrNotPublished),
		errors.Is(err, invoicing.ErrInvalidTransition),
		errors.Is(err, invoicing.ErrContactNotMapped):
		return ErrCodeInvalidState
	case errors.Is(err, invoicing.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, invoicing.ErrExternalAPI):
		return ErrCodeExternalAPI
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case "NOT_FOUND":
			return ErrCodeNotFound
		case "INVALID_INPUT":
			return ErrCodeValidation
		case "INVALID_STATE":
			return ErrCodeInvalidState
		case "CONCURRENCY_CONFLICT", "ALREADY_EXISTS":
			return ErrCodeConflict
		}
	}
	return ErrCodeInternal
}

// ErrorMessage returns a client-safe message for err. Internal errors are not echoed.
func ErrorMessage(code string, err error) string {
	if code == ErrCodeInternal || err == nil {
		return "An unexpected error occurred"
	}
	return err.Error()
}

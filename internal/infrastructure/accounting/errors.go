package accounting

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erp/billsync/internal/domain/invoicing"
)

// APIError is a failed call to the accounting platform. StatusCode is 0 for
// transport failures (timeouts, refused connections). It matches
// invoicing.ErrExternalAPI under errors.Is.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	cause      error
}

// Error implements error
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("accounting api: %s", e.Message)
	}
	return fmt.Sprintf("accounting api: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the category error and the transport cause
func (e *APIError) Unwrap() []error {
	if e.cause != nil {
		return []error{invoicing.ErrExternalAPI, e.cause}
	}
	return []error{invoicing.ErrExternalAPI}
}

// IsNotFound reports a 404 response
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsRetryable reports transport failures, throttling and server errors
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

func newTransportError(err error) *APIError {
	return &APIError{Message: err.Error(), cause: err}
}

// newStatusError builds an APIError from a non-2xx response, preferring the
// message field of a JSON error body over the raw body text
func newStatusError(status int, body []byte) *APIError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = "unexpected status"
	}
	return &APIError{StatusCode: status, Message: msg, Body: string(body)}
}

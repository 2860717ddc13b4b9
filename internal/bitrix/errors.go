package bitrix

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotConfigured is returned when the webhook URL or entity type id is
// missing.
var ErrNotConfigured = errors.New("bitrix integration not configured")

// TransportError means the CRM could not be reached at all (DNS, connect,
// timeout, broken body).
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bitrix %s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an error envelope returned by the CRM.
type APIError struct {
	Method      string
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("bitrix %s: unexpected status %d", e.Method, e.Status)
}

// IsNotFound reports whether err is a CRM "not found" envelope.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND"
}

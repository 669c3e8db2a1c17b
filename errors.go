package pushrelay

import (
	"errors"
	"fmt"
)

// Error represents a pushrelay library error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for pushrelay operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeNotFound indicates a referenced subscription does not exist
	// or is inactive.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodePermissionDenied indicates the user declined notification
	// permission on the client.
	ErrCodePermissionDenied = "PERMISSION_DENIED"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a database operation failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeDelivery indicates a push delivery attempt failed.
	ErrCodeDelivery = "DELIVERY_ERROR"

	// ErrCodeEndpointGone indicates the push service reported the endpoint
	// as permanently expired or unregistered (HTTP 404/410).
	ErrCodeEndpointGone = "ENDPOINT_GONE"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrEndpointGone is returned by a PushGateway when the push service
	// reports the subscription's endpoint as gone. The dispatcher reacts
	// by deactivating the subscription.
	ErrEndpointGone = &Error{
		Code:    ErrCodeEndpointGone,
		Message: "push endpoint expired or unregistered",
	}

	// ErrPermissionDenied is returned by the client when the user declines
	// the browser notification permission prompt.
	ErrPermissionDenied = &Error{
		Code:    ErrCodePermissionDenied,
		Message: "notification permission denied",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	return hasCode(err, ErrCodeNoData)
}

// IsNotFound checks if an error carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error carries the VALIDATION_ERROR code.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsEndpointGone checks if an error signals a permanently invalid endpoint.
func IsEndpointGone(err error) bool {
	return hasCode(err, ErrCodeEndpointGone)
}

func hasCode(err error, code string) bool {
	var prErr *Error
	if errors.As(err, &prErr) {
		return prErr.Code == code
	}
	return false
}

package httpclient

import (
	"fmt"

	ierr "github.com/wispbill/wispbill/internal/errors"
)

// Error is a non-2xx answer from a remote service
type Error struct {
	StatusCode int
	Response   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("http client error: status %d", e.StatusCode)
}

// Unwrap lets ierr.IsExternal and HTTPStatusFromErr classify the failure
func (e *Error) Unwrap() error {
	return ierr.ErrHTTPClient
}

// NewError creates a new HTTP client error
func NewError(statusCode int, response []byte) *Error {
	return &Error{
		StatusCode: statusCode,
		Response:   response,
	}
}

// IsHTTPError checks if an error is an HTTP client error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if ierr.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

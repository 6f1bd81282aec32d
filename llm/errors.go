package llm

import (
	"errors"
	"fmt"
)

// RequestError is a failed chat completion request. The client retries
// transient failures (transport errors, HTTP 429, 5xx); everything else
// indicates a request or configuration problem and fails the call
// immediately.
type RequestError struct {
	// Status is the HTTP status code, 0 when no response arrived.
	Status int

	// Transient reports whether a retry may succeed.
	Transient bool

	// Err is the underlying cause.
	Err error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: %v", e.Status, e.Err)
	}
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// transientErr wraps err as a retryable request failure.
func transientErr(status int, err error) error {
	return &RequestError{Status: status, Transient: true, Err: err}
}

// fatalErr wraps err as a non-retryable request failure.
func fatalErr(status int, err error) error {
	return &RequestError{Status: status, Err: err}
}

// IsTransient reports whether err is a request failure worth retrying.
// Errors that are not a RequestError are never retried.
func IsTransient(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Transient
}

// AsRequestError unwraps err to the RequestError it carries, if any.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	ok := errors.As(err, &reqErr)
	return reqErr, ok
}

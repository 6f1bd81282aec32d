package enrich

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures.
type ErrorKind string

// Fetch failure classifications. Network errors, timeouts, and 5xx statuses
// are transient and retried; the rest are terminal.
const (
	// KindNetwork covers connection refused/reset and DNS failures.
	KindNetwork ErrorKind = "network"

	// KindTimeout means an attempt exceeded the configured timeout.
	KindTimeout ErrorKind = "timeout"

	// KindHTTPStatus means the server returned a non-2xx status.
	KindHTTPStatus ErrorKind = "http_status"

	// KindUnsupportedContent means the response was not HTML or text.
	KindUnsupportedContent ErrorKind = "unsupported_content"

	// KindDecode means the body could not be coerced to text.
	KindDecode ErrorKind = "decode"
)

// FetchError is a classified fetch failure. It is carried as data in a
// FetchResult rather than propagated up the call stack.
type FetchError struct {
	// Kind is the failure classification.
	Kind ErrorKind

	// Status is the HTTP status code for KindHTTPStatus errors, 0 otherwise.
	Status int

	// Err is the underlying error, if any.
	Err error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
// 5xx statuses, timeouts, and network errors are transient; 4xx statuses,
// unsupported content types, and decode failures are terminal.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.Status >= 500
	default:
		return false
	}
}

// AsFetchError extracts a *FetchError from err, or nil if err is not one.
func AsFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

package gofins

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound reports that the requested package, symbol or rating does not
// exist. Views render it as a "not found" state rather than an error.
var ErrNotFound = errors.New("not found")

// TransportError is a failed request or a non-2xx response.
type TransportError struct {
	Op     string // e.g. "GET analysis/42"
	Status int    // 0 when no response arrived
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNotFound) true for 404 responses.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Temporary reports whether retrying may help: no response at all, 429 or
// a 5xx status.
func (e *TransportError) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// ValidationError rejects input before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsNotFound reports whether err means the resource is absent.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

package domain

import (
	"errors"
	"fmt"
)

// BackendErrorKind classifies why a backend call failed.
type BackendErrorKind string

const (
	BackendAuth        BackendErrorKind = "auth"
	BackendRateLimited BackendErrorKind = "rate_limited"
	BackendBadRequest  BackendErrorKind = "bad_request"
	BackendTimeout     BackendErrorKind = "timeout"
	BackendUpstream    BackendErrorKind = "upstream"
)

// BackendError is the only error surfaced out of a provider. The
// wrapped cause carries provider detail for server-side logs; it must
// never be echoed into the chat surface.
type BackendError struct {
	Provider string
	Kind     BackendErrorKind
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsBackendError unwraps err into a *BackendError if one is present.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

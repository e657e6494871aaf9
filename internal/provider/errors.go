package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"relaybot/internal/domain"
)

// statusError converts a non-2xx HTTP response into a BackendError.
// The body stays in the wrapped cause for server-side logs only.
func statusError(provider string, status int, body string) *domain.BackendError {
	return &domain.BackendError{
		Provider: provider,
		Kind:     kindForStatus(status),
		Err:      fmt.Errorf("HTTP %d: %s", status, body),
	}
}

func kindForStatus(status int) domain.BackendErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.BackendAuth
	case status == http.StatusTooManyRequests:
		return domain.BackendRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.BackendTimeout
	case status >= 400 && status < 500:
		return domain.BackendBadRequest
	default:
		return domain.BackendUpstream
	}
}

// transportError converts a failed round trip (network error, client
// timeout, canceled context) into a BackendError.
func transportError(provider string, err error) *domain.BackendError {
	kind := domain.BackendUpstream
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.BackendTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.BackendTimeout
	}
	return &domain.BackendError{Provider: provider, Kind: kind, Err: err}
}

// decodeError wraps a malformed upstream response body.
func decodeError(provider string, err error) *domain.BackendError {
	return &domain.BackendError{
		Provider: provider,
		Kind:     domain.BackendUpstream,
		Err:      fmt.Errorf("decode response: %w", err),
	}
}

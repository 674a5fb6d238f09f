// Package connerr defines the error taxonomy for the connectivity layer.
// Every error that crosses the public API is an *Error carrying a Kind and
// a retryability flag, so callers never see opaque failures.
package connerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a connectivity error.
type Kind string

const (
	KindNetwork            Kind = "network"
	KindWebSocket          Kind = "websocket"
	KindAuthentication     Kind = "authentication"
	KindTimeout            Kind = "timeout"
	KindValidation         Kind = "validation"
	KindNoActiveConnection Kind = "no_active_connection"
	KindDestroyed          Kind = "destroyed"
)

// Error is a classified connectivity error wrapping an optional cause.
type Error struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network wraps a transport-level connectivity failure (DNS, refused, reset).
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Retryable: true, Err: err}
}

// WebSocket wraps a protocol or handshake failure on the push transport.
func WebSocket(err error) *Error {
	return &Error{Kind: KindWebSocket, Retryable: true, Err: err}
}

// Authentication wraps a credential rejection. Never retried automatically.
func Authentication(err error) *Error {
	return &Error{Kind: KindAuthentication, Retryable: false, Err: err}
}

// Timeout wraps an operation that exceeded its configured deadline.
func Timeout(err error) *Error {
	return &Error{Kind: KindTimeout, Retryable: true, Err: err}
}

// Validation wraps a malformed-message failure. Never retried.
func Validation(err error) *Error {
	return &Error{Kind: KindValidation, Retryable: false, Err: err}
}

// NoActiveConnection reports a send attempted without an active transport.
func NoActiveConnection() *Error {
	return &Error{Kind: KindNoActiveConnection, Retryable: true, Err: errors.New("no active connection")}
}

// Destroyed reports a call made after the manager was destroyed.
func Destroyed() *Error {
	return &Error{Kind: KindDestroyed, Retryable: false, Err: errors.New("connection manager destroyed")}
}

// FromStatusCode classifies an HTTP response status.
func FromStatusCode(code int) *Error {
	err := fmt.Errorf("unexpected status %d %s", code, http.StatusText(code))

	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Authentication(err)
	case code == http.StatusRequestTimeout:
		return Timeout(err)
	case code == http.StatusTooManyRequests || code >= 500:
		return Network(err)
	default:
		return &Error{Kind: KindNetwork, Retryable: false, Err: err}
	}
}

// KindOf returns the Kind of err, or KindNetwork for unclassified errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNetwork
}

// IsRetryable reports whether err should trigger a retry. Unclassified
// errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

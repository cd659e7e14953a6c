package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrInvalidConfig is returned when a request or client is built from a
	// bad client id, secret, redirect URI or state.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrStateMismatch is returned when the state echoed by the provider does
	// not match the state that was sent. The code must not be exchanged.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrProvider matches every *ProviderError.
	ErrProvider = errors.New("provider error")
	// ErrMalformedResponse matches every *MalformedResponseError.
	ErrMalformedResponse = errors.New("malformed token response")
	// ErrAuthorizationDenied matches every *AuthorizationDeniedError.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInvalidCallback is returned when a redirect URL cannot be parsed
	// into a callback.
	ErrInvalidCallback = errors.New("invalid callback")
)

const maxBodySnippet = 512

// TransportError reports a failure to complete the round trip to the token
// endpoint: DNS, connect, TLS, timeout or cancellation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Timeout reports whether the failure was a timeout or deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ProviderError is a non-200 answer from the token endpoint. Body holds the
// raw response; Code and Description are filled when the body is an OAuth
// error object.
type ProviderError struct {
	Status      int
	Body        string
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: status %d", ErrProvider, e.Status)
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += " (" + e.Description + ")"
		}
	}
	if e.Body != "" {
		msg += ": " + snippet(e.Body)
	}
	return msg
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Retryable reports whether the provider failed on its side. Retrying is
// left to the caller.
func (e *ProviderError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError
}

// MalformedResponseError is a 200 response whose body does not match the
// token response schema.
type MalformedResponseError struct {
	Field  string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedResponse, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", ErrMalformedResponse, e.Field, e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// AuthorizationDeniedError is returned when the provider redirected back
// with an error instead of a code, for example "access_denied".
type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthorizationDenied, e.Reason)
}

func (e *AuthorizationDeniedError) Is(target error) bool { return target == ErrAuthorizationDenied }

func snippet(body string) string {
	if len(body) <= maxBodySnippet {
		return body
	}
	return body[:maxBodySnippet] + "..."
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

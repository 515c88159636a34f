package chat

import (
	"errors"
	"fmt"
)

// Kinds of chat failure. Match them with errors.Is.
var (
	// ErrNetwork marks a request that never got a response: refused
	// connection, DNS failure, timeout or cancellation.
	ErrNetwork = errors.New("network error")
	// ErrStatus marks a response with a non-OK HTTP status or an error
	// reported by the provider API.
	ErrStatus = errors.New("unexpected status")
	// ErrProtocol marks a response body that could not be decoded.
	ErrProtocol = errors.New("protocol error")
)

// Error is the failure type returned by every Model in this package.
type Error struct {
	// Kind is one of ErrNetwork, ErrStatus or ErrProtocol.
	Kind error
	// StatusCode is the HTTP status for ErrStatus failures when known.
	StatusCode int
	// Err is the underlying cause. May be nil.
	Err error
}

func (e *Error) Error() string {
	msg := "chat: " + e.Kind.Error()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

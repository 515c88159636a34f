package embedder

import (
	"errors"
	"fmt"
)

// Sentinel kinds for embedding failures. Match them with errors.Is.
var (
	// ErrInvalidInput marks text the embedder refuses to send (empty or blank).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNetwork marks a remote call that could not complete: refused
	// connection, DNS failure, timeout or cancellation.
	ErrNetwork = errors.New("network error")
	// ErrProtocol marks a response that arrived but could not be used: non-2xx
	// status, undecodable body or a missing or empty embedding array.
	ErrProtocol = errors.New("protocol error")
)

// Error is the failure type returned by every embedder in this package.
type Error struct {
	// Backend names the embedder that failed (e.g. "ollama").
	Backend string
	// Kind is one of ErrInvalidInput, ErrNetwork or ErrProtocol.
	Kind error
	// Err is the underlying cause. May be nil.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s embedder: %v", e.Backend, e.Kind)
	}
	return fmt.Sprintf("%s embedder: %v: %v", e.Backend, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidInput(backend, msg string) error {
	return &Error{Backend: backend, Kind: ErrInvalidInput, Err: errors.New(msg)}
}

func networkErr(backend string, err error) error {
	return &Error{Backend: backend, Kind: ErrNetwork, Err: err}
}

func protocolErr(backend string, err error) error {
	return &Error{Backend: backend, Kind: ErrProtocol, Err: err}
}

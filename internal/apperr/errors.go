// Package apperr classifies failures so the HTTP layer can translate them
// without inspecting error strings.
package apperr

import (
	"errors"
	"net/http"
)

// Kind enumerates the failure classes surfaced to callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUpstream
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a Kind, a user-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Unavailable marks an upstream collaborator that is not configured at all.
	Unavailable bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Validation reports a malformed request rejected before touching any state.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Upstream wraps a failing speech or language-model collaborator.
func Upstream(message string, err error) error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// Unavailable reports a collaborator that was never configured.
func Unavailable(message string) error {
	return &Error{Kind: KindUpstream, Message: message, Unavailable: true}
}

// Unauthorized reports an admin key mismatch.
func Unauthorized() error {
	return &Error{Kind: KindAuth, Message: "unauthorized"}
}

// NotFound reports a lookup of an identifier that was never issued.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the transport status code.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		if e.Unavailable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to API clients. Causes are never included.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

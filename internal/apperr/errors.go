// Package apperr defines the error taxonomy shared by the server and the client.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation and transport.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindConflict
	KindNotFound
	KindTransient
	KindInvalid
)

var kindNames = map[Kind]string{
	KindInternal:     "internal_error",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindConflict:     "conflict",
	KindNotFound:     "not_found",
	KindTransient:    "transient",
	KindInvalid:      "bad_parameter",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels for errors.Is comparisons against a kind.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrTransient    = &Error{Kind: KindTransient, Message: "temporarily unavailable"}
	ErrInvalid      = &Error{Kind: KindInvalid, Message: "bad parameter"}
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrConflict) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var kinded interface{ ErrorKind() Kind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return KindInternal
}

// ErrorKind lets other error types embed classification via KindOf.
func (e *Error) ErrorKind() Kind { return e.Kind }

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalid:
		return http.StatusBadRequest
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromHTTPStatus maps a response status back to a kind. Any 5xx is transient from the
// caller's point of view.
func FromHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest:
		return KindInvalid
	case status == http.StatusTooManyRequests, status >= 500:
		return KindTransient
	default:
		return KindInternal
	}
}

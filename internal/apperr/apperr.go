package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies a domain failure. Handlers map kinds to HTTP status codes;
// services never touch HTTP concepts directly.
type Kind int

const (
	// KindUnauthenticated means no principal could be resolved at all.
	KindUnauthenticated Kind = iota
	// KindForbidden means the principal lacks the required role/membership.
	KindForbidden
	KindNotFound
	KindInvalid
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) *Error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error        { return &Error{Kind: KindNotFound, Message: msg} }
func Invalid(msg string) *Error         { return &Error{Kind: KindInvalid, Message: msg} }

// StatusCode maps an error to an HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return fiber.StatusInternalServerError
	}
	switch e.Kind {
	case KindUnauthenticated:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindInvalid:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

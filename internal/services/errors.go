package services

import "net/http"

// Kind classifies a service failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicateEmail
	KindInvalidCredentials
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
)

// Error is a failure the caller caused. Message is safe to show to clients.
// Anything else returned by a service is an internal error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound)
// holds regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindDuplicateEmail, KindInvalidCredentials:
		return http.StatusBadRequest
	case KindUnauthenticated, KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "Please add all fields"}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail, Message: "User already exists"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated, Message: "Not authorized"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "User not authorized"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "File not found"}
)

func validationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func unauthenticatedError(message string) error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

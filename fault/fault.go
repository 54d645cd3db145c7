// Package fault classifies request errors into the kinds the response
// envelope distinguishes.
//
// Every error produced while serving a request is either a *Error carrying
// a [Kind], or an unclassified error which is treated as [Unexpected].
// The envelope renders Validation, NotFound and Conflict as "fail" and
// Unexpected as "error".
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an error with how it should be reported.
type Kind uint8

const (
	// Unexpected is anything not classified below.
	Unexpected Kind = iota
	// Validation is malformed client input or a rejected business rule.
	Validation
	// NotFound means an update or delete matched no documents.
	NotFound
	// Conflict means a write collided with an existing document.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "unexpected"
	}
}

// Status returns the envelope status for the kind.
func (k Kind) Status() string {
	if k == Unexpected {
		return "error"
	}
	return "fail"
}

// HTTPStatus returns the HTTP status code used when the kind is served.
// Every client-side kind maps to 400.
func (k Kind) HTTPStatus() int {
	if k == Unexpected {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string

	// Detail is an optional structured form of the message. When set it is
	// what clients receive instead of Message.
	Detail map[string]any

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf returns a Validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: Validation, Message: fmt.Sprintf(format, args...)}
}

// Invalid returns a Validation error reporting an invalid value for field,
// e.g. {"path": "Invalid ('Foo.bar')"}.
func Invalid(field, value string) *Error {
	msg := fmt.Sprintf("Invalid ('%s')", value)
	return &Error{
		Kind:    Validation,
		Message: fmt.Sprintf("%s: %s", field, msg),
		Detail:  map[string]any{field: msg},
	}
}

// NoSuchDocument returns a NotFound error naming the requested uid.
func NoSuchDocument(uid string) *Error {
	return &Error{
		Kind:    NotFound,
		Message: fmt.Sprintf("no such document: %s", uid),
		Detail:  map[string]any{"not_found": uid},
	}
}

// Duplicate returns a Conflict error for a uid that already exists.
func Duplicate(uid string, cause error) *Error {
	return &Error{
		Kind:    Conflict,
		Message: fmt.Sprintf("duplicate uid: %s", uid),
		Detail:  map[string]any{"conflict": uid},
		Err:     cause,
	}
}

// Store wraps a storage failure on write as a Validation error carrying the
// storage's message.
func Store(cause error) *Error {
	return &Error{Kind: Validation, Message: cause.Error(), Err: cause}
}

// KindOf reports the kind of err. Unclassified errors are Unexpected.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unexpected
}

// Payload returns what a client should see for err: the structured detail
// when one is attached, otherwise the message.
func Payload(err error) any {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Detail != nil {
			return fe.Detail
		}
		return fe.Message
	}
	if err == nil {
		return nil
	}
	return err.Error()
}

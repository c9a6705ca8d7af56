// Package bizcode defines the numeric result codes shared by the formula
// persistence API and its clients. Every business failure travels as one of
// these codes inside the {code, msg, data} response envelope; 0 is success.
package bizcode

import (
	"errors"
	"fmt"
)

const (
	OK                   = 0
	RecordNotFound       = -1
	MissingParameter     = -9
	AlreadyInState       = -10
	ExclusivityViolation = -11

	// ServiceError is the catch-all for persistence faults. Any non-zero
	// code outside the table above is treated the same way by callers.
	ServiceError = -500
)

// messages is the single code-to-message table. Call sites never hardcode
// explanation strings; adding a code means one edit here.
var messages = map[int]string{
	OK:                   "ok",
	RecordNotFound:       "formula record not found, refresh the list",
	MissingParameter:     "required parameter missing from request",
	AlreadyInState:       "formula already holds the requested status, refresh to see current state",
	ExclusivityViolation: "another formula in this design task already holds the exclusive status, refresh the list",
	ServiceError:         "service error",
}

func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ServiceError]
}

// Error carries a result code across the service and client layers. Msg, when
// set, is surfaced verbatim; otherwise the table message applies.
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return messages[ServiceError]
	}
	if e.Msg != "" {
		return e.Msg
	}
	return Message(e.Code)
}

func New(code int) *Error {
	return &Error{Code: code}
}

func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the business code from err. Errors that are not a
// *bizcode.Error collapse to ServiceError.
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ServiceError
}

// Is lets errors.Is match two bizcode errors by code alone.
func (e *Error) Is(target error) bool {
	var be *Error
	if !errors.As(target, &be) {
		return false
	}
	return e.Code == be.Code
}

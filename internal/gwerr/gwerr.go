// Package gwerr defines the gateway's error taxonomy: a closed set of
// kinds, each mapped to an HTTP-shaped status code, that adapter, codec,
// and engine operations return instead of an ad hoc error string. Cache
// operations return no errors.
package gwerr

import "fmt"

// Kind is one of the closed set of error categories the gateway
// recognizes. It is not a Go error type itself; Error wraps it.
type Kind int

const (
	InvalidRequest Kind = iota
	Unauthenticated
	Forbidden
	NotFound
	Timeout
	Conflict
	PreconditionFailed
	Unprocessable
	Locked
	TooManyRequests
	Internal
	NotImplemented
	Unavailable
	Partial
)

// Status returns the HTTP-shaped status code for the kind, per the
// taxonomy table.
func (k Kind) Status() int {
	switch k {
	case InvalidRequest:
		return 400
	case Unauthenticated:
		return 401
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case Timeout:
		return 408
	case Conflict:
		return 409
	case PreconditionFailed:
		return 412
	case Unprocessable:
		return 422
	case Locked:
		return 423
	case TooManyRequests:
		return 429
	case NotImplemented:
		return 501
	case Unavailable:
		return 503
	case Partial:
		return 207
	case Internal:
		fallthrough
	default:
		return 500
	}
}

func (k Kind) String() string {
	switch k {
	case InvalidRequest:
		return "InvalidRequest"
	case Unauthenticated:
		return "Unauthenticated"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case Timeout:
		return "Timeout"
	case Conflict:
		return "Conflict"
	case PreconditionFailed:
		return "PreconditionFailed"
	case Unprocessable:
		return "Unprocessable"
	case Locked:
		return "Locked"
	case TooManyRequests:
		return "TooManyRequests"
	case Internal:
		return "Internal"
	case NotImplemented:
		return "NotImplemented"
	case Unavailable:
		return "Unavailable"
	case Partial:
		return "Partial"
	default:
		return "Unknown"
	}
}

// Error is a typed gateway error carrying a Kind and a human-readable
// message. Field is optional and names the offending request field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Status returns the HTTP-shaped status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithField returns a copy of the error with Field set, for request
// validation errors that should name the offending field.
func (e *Error) WithField(field string) *Error {
	cp := *e
	cp.Field = field
	return &cp
}

// As extracts a *Error from a generic error, returning (nil, false) if
// err is not a gateway error.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	ge, ok := err.(*Error)
	return ge, ok
}

// StatusOf returns the HTTP-shaped status for any error: the error's
// own Kind if it is a *Error, otherwise Internal.
func StatusOf(err error) int {
	if err == nil {
		return 200
	}
	if ge, ok := As(err); ok {
		return ge.Status()
	}
	return Internal.Status()
}

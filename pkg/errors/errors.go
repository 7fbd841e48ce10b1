package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Metadata is how a Code surfaces over HTTP. Exposed codes show the error's
// own message to clients; the rest show PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	Exposed        bool
}

var metadataByCode = map[Code]Metadata{
	//                 status                          retry  public message             details exposed
	CodeValidation:   {http.StatusBadRequest, false, "validation failed", true, true},
	CodeBadRequest:   {http.StatusBadRequest, false, "bad request", true, true},
	CodeUnauthorized: {http.StatusUnauthorized, false, "authentication required", false, true},
	CodeForbidden:    {http.StatusForbidden, false, "access denied", false, true},
	CodeNotFound:     {http.StatusNotFound, false, "resource not found", false, true},
	CodeConflict:     {http.StatusConflict, false, "conflict detected", false, true},
	CodeIdempotency:  {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeRateLimit:    {http.StatusTooManyRequests, true, "rate limit exceeded", true, true},
	CodeInternal:     {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:   {http.StatusServiceUnavailable, true, "dependency unavailable", true, false},
}

// MetadataFor resolves the transport metadata for a code, defaulting to internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed error every service returns across package lines.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf formats the message before building the error.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// NotFound names the missing catalog resource, e.g. NotFound("brand").
func NotFound(resource string) *Error {
	return New(CodeNotFound, resource+" not found").WithDetails(map[string]any{"resource": resource})
}

// Conflictf reports a uniqueness or state clash.
func Conflictf(format string, args ...any) *Error {
	return Newf(CodeConflict, format, args...)
}

// Invalid reports a single rejected field.
func Invalid(field, reason string) *Error {
	return New(CodeValidation, field+" "+reason).WithDetails(map[string]any{"field": field, "reason": reason})
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// PublicMessage is the text safe to return to the caller.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.Exposed && e.Message() != "" {
		return e.message
	}
	return meta.PublicMessage
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// holds for any not-found error in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.code == t.code && (t.message == "" || t.message == e.message)
}

// IsCode reports whether err carries the provided typed code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// StatusOf returns the HTTP status err maps to; untyped errors are 500.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return MetadataFor(As(err).Code()).HTTPStatus
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

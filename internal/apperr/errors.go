// Package apperr defines the business error taxonomy shared by the core and
// the HTTP layer. Every error carries a machine-readable kind plus a message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindDeviceSuspended   Kind = "device_suspended"
	KindTenantMismatch    Kind = "tenant_mismatch"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func NotFound(entity string) *Error {
	return New(KindNotFound, entity+"_not_found", entity+" not found")
}

func PermissionDenied(message string) *Error {
	return New(KindPermissionDenied, "", message)
}

func InvalidTransition(message string) *Error {
	return New(KindInvalidTransition, "", message)
}

func DeviceSuspended() *Error {
	return New(KindDeviceSuspended, "", "terminal is suspended, contact administrator")
}

func TenantMismatch() *Error {
	return New(KindTenantMismatch, "", "terminal does not belong to this tenant")
}

// Internal wraps a storage or infrastructure failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps a kind onto the status code the transport returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied, KindDeviceSuspended, KindTenantMismatch:
		return http.StatusForbidden
	case KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

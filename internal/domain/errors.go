package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifica falhas para logs, métricas e o journal de resultados.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindAuth            ErrorKind = "auth"
	KindBackend         ErrorKind = "backend"
	KindTimeout         ErrorKind = "timeout"
	KindContactCreation ErrorKind = "contact_creation"
	KindUnknown         ErrorKind = "unknown"
)

// ValidationError: entrada malformada ou incompleta. Nunca é retentada.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AuthFailureReason categorizes credential failures.
type AuthFailureReason string

const (
	AuthFailureRefresh  AuthFailureReason = "refresh_failed"
	AuthFailureRejected AuthFailureReason = "rejected_after_retry"
)

// AuthError: refresh ou re-autenticação esgotados. Terminal.
type AuthError struct {
	Backend string
	Reason  AuthFailureReason
	Err     error
}

func NewAuthError(backend string, reason AuthFailureReason, err error) *AuthError {
	return &AuthError{Backend: backend, Reason: reason, Err: err}
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s: authentication failed (%s)", e.Backend, e.Reason)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// BackendError: falha não relacionada a autenticação. Carrega status e corpo.
//
// Status 0 means the request never produced a response (network or timeout).
type BackendError struct {
	Backend string
	Status  int
	Body    string
	Timeout bool
	Err     error
}

func (e *BackendError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Backend, e.Err)
	case e.Status == 0:
		return fmt.Sprintf("%s: request failed: %v", e.Backend, e.Err)
	default:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Backend, e.Status, truncate(e.Body, 300))
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ContactCreationError: o backend aceitou a criação mas não devolveu identificador.
type ContactCreationError struct {
	Backend string
	Body    string
}

func (e *ContactCreationError) Error() string {
	return fmt.Sprintf("%s: contact created without identifier: %s", e.Backend, truncate(e.Body, 300))
}

// ClassifyError maps an error to its ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	var aErr *AuthError
	var bErr *BackendError
	var cErr *ContactCreationError

	switch {
	case errors.As(err, &vErr):
		return KindValidation
	case errors.As(err, &aErr):
		return KindAuth
	case errors.As(err, &cErr):
		return KindContactCreation
	case errors.As(err, &bErr):
		if bErr.Timeout {
			return KindTimeout
		}
		return KindBackend
	default:
		return KindUnknown
	}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

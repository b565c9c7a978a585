// Package errs defines the error taxonomy shared by services and handlers.
// Errors carry an oops code; the HTTP layer maps codes to status codes.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeConflict           = "CONFLICT"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL"
)

// Sentinels wrapped by the coded errors, for errors.Is checks.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("unable to login")
	ErrConflict           = errors.New("conflict")
	ErrUnauthenticated    = errors.New("please authenticate")
	ErrNotFound           = errors.New("not found")
)

// Validation reports malformed, missing or forbidden input.
func Validation(format string, args ...any) error {
	return oops.Code(CodeValidation).Wrap(&publicError{msg: fmt.Sprintf(format, args...), err: ErrValidation})
}

// InvalidCredentials reports a failed login without saying which half was wrong.
func InvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(&publicError{msg: ErrInvalidCredentials.Error(), err: ErrInvalidCredentials})
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) error {
	return oops.Code(CodeConflict).Wrap(&publicError{msg: fmt.Sprintf(format, args...), err: ErrConflict})
}

// Unauthenticated reports a missing, invalid, revoked or expired session.
func Unauthenticated() error {
	return oops.Code(CodeUnauthenticated).Wrap(&publicError{msg: ErrUnauthenticated.Error(), err: ErrUnauthenticated})
}

// NotFound reports an absent resource. Callers use it for resources owned by
// someone else as well.
func NotFound(resource string) error {
	return oops.Code(CodeNotFound).With("resource", resource).
		Wrap(&publicError{msg: resource + " not found", err: ErrNotFound})
}

// Internal wraps an unexpected failure. Its message never reaches the client.
// Errors that already carry a code pass through untouched.
func Internal(operation string, err error) error {
	if _, ok := oops.AsOops(err); ok {
		return err
	}
	return oops.Code(CodeInternal).With("operation", operation).Wrap(err)
}

// Code returns the taxonomy code of err, CodeInternal when it has none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := any(oopsErr.Code()).(string); ok && code != "" {
			return code
		}
	}
	return CodeInternal
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation, CodeInvalidCredentials, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that is safe to show to the client.
func PublicMessage(err error) string {
	var pe *publicError
	if Code(err) != CodeInternal && errors.As(err, &pe) {
		return pe.msg
	}
	return "internal server error"
}

type publicError struct {
	msg string
	err error
}

func (e *publicError) Error() string { return e.msg }
func (e *publicError) Unwrap() error { return e.err }

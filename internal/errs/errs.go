package errs

import (
	"errors"
	"fmt"
)

// Kinds. Handlers map these to transport codes; everything else is internal.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var (
	ErrInstallationNotFound = fmt.Errorf("installation %w", ErrNotFound)
	ErrPartnerNotFound      = fmt.Errorf("partner %w", ErrNotFound)
	ErrTeamNotFound         = fmt.Errorf("team %w", ErrNotFound)
	ErrTechnicianNotFound   = fmt.Errorf("technician %w", ErrNotFound)
	ErrSettingNotFound      = fmt.Errorf("setting %w", ErrNotFound)
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeForbidden         = "FORBIDDEN"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInternal          = "INTERNAL_ERROR"
)

// kindError keeps the human message separate from the kind so that
// Message() can be shown to the caller without the "validation error:" prefix.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKind(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error { return newKind(ErrValidation, format, args...) }
func Conflict(format string, args ...any) error   { return newKind(ErrConflict, format, args...) }
func Forbidden(format string, args ...any) error  { return newKind(ErrForbidden, format, args...) }

func Unauthorized(format string, args ...any) error {
	return newKind(ErrUnauthorized, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return newKind(ErrInvalidTransition, format, args...)
}

// Code returns the stable machine code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	default:
		return CodeInternal
	}
}

// Message returns the text safe to show to a caller. Internal errors are masked.
func Message(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	if Code(err) == CodeInternal {
		return "internal error"
	}
	return err.Error()
}

// IsDomain reports whether err belongs to one of the domain kinds.
func IsDomain(err error) bool {
	return Code(err) != CodeInternal && err != nil
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

package service

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by a service matches exactly one of these with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrAuthorization = errors.New("not authorized")
	ErrConflict      = errors.New("conflict")
	ErrTransient     = errors.New("temporarily unavailable")
	ErrInternal      = errors.New("internal error")
)

var (
	ErrCenterNotFound   = fmt.Errorf("%w: center not found", ErrNotFound)
	ErrDocumentNotFound = fmt.Errorf("%w: document not found", ErrNotFound)
	ErrNoLiveCode       = fmt.Errorf("%w: no live code for document", ErrNotFound)

	ErrCodeMismatch = fmt.Errorf("%w: code mismatch", ErrAuthorization)
	ErrCodeExpired  = fmt.Errorf("%w: code expired", ErrAuthorization)
	ErrGrantInvalid = fmt.Errorf("%w: grant invalid", ErrAuthorization)
	ErrWrongCenter  = fmt.Errorf("%w: document belongs to another center", ErrAuthorization)
	ErrNoCenter     = fmt.Errorf("%w: account operates no active center", ErrAuthorization)
	ErrForbidden    = fmt.Errorf("%w: operation not permitted", ErrAuthorization)

	ErrAlreadyConsumed = fmt.Errorf("%w: code already consumed", ErrConflict)
	ErrAlreadyPrinted  = fmt.Errorf("%w: document already printed", ErrConflict)
	ErrStaleState      = fmt.Errorf("%w: document is not in a state that allows this", ErrConflict)
	ErrCodeStillLive   = fmt.Errorf("%w: a live code already exists", ErrConflict)
	ErrNotDelivered    = fmt.Errorf("%w: content has not been delivered", ErrConflict)

	ErrContentUnavailable = fmt.Errorf("%w: content unavailable", ErrTransient)
)

// ValidationError is a user-correctable input problem. Message is safe to show verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

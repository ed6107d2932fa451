package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services. Handlers map them to HTTP statuses.
var (
	ErrNotFound  = errors.New("request not found")
	ErrForbidden = errors.New("forbidden")
	ErrBusy      = errors.New("another action on this request is in progress")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a *ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

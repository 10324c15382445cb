package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced record has no matching row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateName is returned on a unique-name violation for a
	// category or source.
	ErrDuplicateName = errors.New("name already exists")
)

// ValidationError rejects malformed or missing input before any store
// access happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MonthLockedError means the target month is closed and the write must be
// rejected. The month is carried so callers can tell the user which period
// to unlock; this is never conflated with validation or not-found.
type MonthLockedError struct {
	Month string
}

func (e *MonthLockedError) Error() string {
	return fmt.Sprintf("month %s is locked", e.Month)
}

// IsValidation reports whether err is a client-input failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsMonthLocked reports whether err is a lock rejection, and if so which
// month was locked.
func IsMonthLocked(err error) (string, bool) {
	var le *MonthLockedError
	if errors.As(err, &le) {
		return le.Month, true
	}
	return "", false
}

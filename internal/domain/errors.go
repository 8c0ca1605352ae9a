package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError means the requested window overlaps an accepted or booked
// slot of the same artist once the buffer is applied.
type ConflictError struct {
	ArtistID      string
	ConflictingID string
	Buffer        time.Duration
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("artist %s is already booked within %s of the requested window (booking %s)", e.ArtistID, e.Buffer, e.ConflictingID)
}

type AuthorizationError struct {
	ActorID string
	Reason  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s is not allowed: %s", e.ActorID, e.Reason)
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StateError carries the current status so that callers can resynchronize.
type StateError struct {
	BookingID string
	Current   BookingStatus
	Action    string
	Reason    string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("cannot %s booking %s in status %s", e.Action, e.BookingID, e.Current)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// TransientError wraps store failures and timeouts. The booking state is
// unchanged when it is returned from a mutation.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

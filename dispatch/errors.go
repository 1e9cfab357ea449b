package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEligibleCollector means matching found nobody; the request simply stays pending
	ErrNoEligibleCollector = errors.New("no eligible collector")
	// ErrConflict means the record kept changing underneath us and the write gave up
	ErrConflict = errors.New("concurrent update conflict")
	// ErrForbidden means the actor's role does not allow the operation on this record
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed input, rejected before any state change
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing or cross-organization reference
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InvalidTransitionError reports a status change that the lifecycle does not allow
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func notFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

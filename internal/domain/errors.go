package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrClaimNotFound = errors.New("claim not found")
)

// ClaimNotFoundError identifies the lookup that found nothing.
// It matches ErrClaimNotFound with errors.Is.
type ClaimNotFoundError struct {
	ID          string
	ClaimNumber string
}

func (e *ClaimNotFoundError) Error() string {
	if e.ClaimNumber != "" {
		return fmt.Sprintf("claim with number %q not found", e.ClaimNumber)
	}
	return fmt.Sprintf("claim %q not found", e.ID)
}

func (e *ClaimNotFoundError) Is(target error) bool {
	return target == ErrClaimNotFound
}

// ValidationError is returned when a claim violates a business rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError is returned when a status change is not an edge of the lifecycle.
type TransitionError struct {
	Current   Status
	Requested Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.Current, e.Requested)
}

// TerminalStateError is returned when an update targets a claim that can no longer change.
type TerminalStateError struct {
	ClaimID string
	Status  Status
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("cannot modify claim %q in terminal state %s", e.ClaimID, e.Status)
}

// OperationNotAllowedError is returned when an operation requires a different status.
type OperationNotAllowedError struct {
	Operation string
	ClaimID   string
	Status    Status
}

func (e *OperationNotAllowedError) Error() string {
	return fmt.Sprintf("cannot %s claim %q in status %s", e.Operation, e.ClaimID, e.Status)
}

// ClaimNumberExhaustedError is returned when every generated claim number collided.
type ClaimNumberExhaustedError struct {
	Attempts int
}

func (e *ClaimNumberExhaustedError) Error() string {
	return fmt.Sprintf("failed to generate unique claim number after %d attempts", e.Attempts)
}

// ClaimNumberConflictError is returned by a store when a claim number is already taken.
type ClaimNumberConflictError struct {
	ClaimNumber string
}

func (e *ClaimNumberConflictError) Error() string {
	return fmt.Sprintf("claim number %q is already in use", e.ClaimNumber)
}

// StoreError wraps a persistence failure the engine cannot act on.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("claim store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

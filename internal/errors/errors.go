// Package errors defines the error taxonomy of the incident-response
// core. State-machine violations and validation errors carry enough
// detail for the caller to correct the request; persistence conflicts are
// marked retryable.
package errors

import (
	"errors"
	"fmt"
)

// Base error types.
var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidInput           = errors.New("invalid input")
)

// StateTransitionError reports an attempted transition from a state that
// does not permit it. Surfaced as a client error, never retried.
type StateTransitionError struct {
	Entity string // "action" or "incident"
	ID     string
	From   string
	To     string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition for %s: %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// NewStateTransition creates a StateTransitionError.
func NewStateTransition(entity, id, from, to string) *StateTransitionError {
	return &StateTransitionError{Entity: entity, ID: id, From: from, To: to}
}

// IsInvalidTransition reports whether err is a state transition violation.
func IsInvalidTransition(err error) bool {
	var ste *StateTransitionError
	return errors.As(err, &ste)
}

// ConflictError reports an optimistic concurrency failure. Safe to retry.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// NewConflict creates a ConflictError.
func NewConflict(entity, id string) *ConflictError {
	return &ConflictError{Entity: entity, ID: id}
}

// NotFoundError reports an absent referenced entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFound creates a NotFoundError.
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// GenerationError reports an upstream hypothesis/LLM failure. The caller
// decides retry and backoff.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("hypothesis generation failed (%s): %v", e.Model, e.Err)
	}
	return fmt.Sprintf("hypothesis generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ExecutionError reports a live action failure. Recorded on the action as
// FAILED; a new action must be approved, there is no automatic retry.
type ExecutionError struct {
	ActionID string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %s execution failed: %v", e.ActionID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TokenReason narrows why a token was rejected.
type TokenReason string

const (
	TokenExpired      TokenReason = "expired"
	TokenMalformed    TokenReason = "malformed"
	TokenMismatch     TokenReason = "mismatch"
	TokenBadSignature TokenReason = "bad_signature"
)

// TokenError reports an invalid acknowledgement token. Validation fails
// closed: the reason says why, never how to fix the token.
type TokenError struct {
	Reason TokenReason
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid token: %s", e.Reason)
}

// NewTokenError creates a TokenError with the given reason.
func NewTokenError(reason TokenReason) *TokenError {
	return &TokenError{Reason: reason}
}

// TokenReasonOf extracts the rejection reason, or "" if err is not a
// token error.
func TokenReasonOf(err error) TokenReason {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

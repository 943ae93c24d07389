package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed transition input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition marks a requested edge the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrLimitExceeded marks a transition rejected by a cap (reopens, milestones).
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrAlreadyCompleted marks homework that is already gold.
	ErrAlreadyCompleted = errors.New("homework already completed")
)

// ValidationError reports a malformed field in a transition command.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidTransitionError identifies the current state and the rejected action.
type InvalidTransitionError struct {
	Entity string
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %q", e.Action, e.Entity, e.From)
}

// Is lets callers match with errors.Is(err, ErrInvalidTransition).
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// LimitExceededError reports a capped counter that is already at its maximum.
type LimitExceededError struct {
	Entity   string
	Resource string
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s %s limit of %d reached", e.Entity, e.Resource, e.Limit)
}

// Is lets callers match with errors.Is(err, ErrLimitExceeded).
func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

func invalid(entity, from, action string) error {
	return &InvalidTransitionError{Entity: entity, From: from, Action: action}
}

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}
